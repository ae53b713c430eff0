// Package docid derives deterministic document and chunk identifiers.
// Re-uploading the same filename under the same tenant produces the same
// ids, so vector upserts overwrite stale records instead of duplicating them.
package docid

import (
	"fmt"

	"github.com/google/uuid"
)

// DocumentID returns a stable id for a filename within a tenant namespace.
// Same namespace and filename always yield the same id.
func DocumentID(namespace, filename string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("kotae:doc:"+namespace+"/"+filename)).String()
}

// ChunkID returns a stable id for the chunk at index within a document.
// The id is a UUID so it can be used directly as a vector-store point id.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("kotae:chunk:%s:%d", documentID, index))).String()
}
