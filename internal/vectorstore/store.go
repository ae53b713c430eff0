// Package vectorstore provides tenant-isolated vector persistence and
// similarity search. Every operation is scoped to a namespace derived from
// the tenant key inside the store itself, so no call path can read or write
// another tenant's records.
package vectorstore

import "context"

// Payload is the metadata persisted with each vector record.
type Payload struct {
	Tenant     string
	Filename   string
	Text       string
	ChunkIndex int
}

// Record is one persisted vector with its chunk metadata. Upserts are
// idempotent by ID: writing the same ID twice overwrites the record.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Result is one similarity hit. Score is "higher is better" within a single
// search's result set; scores are not comparable across tenants or models.
type Result struct {
	ID      string
	Score   float64
	Payload Payload
}

// Store persists vectors per tenant and searches them by similarity.
// Searching a tenant with no records returns an empty slice, not an error,
// and deletes are idempotent no-ops when nothing matches.
type Store interface {
	Upsert(ctx context.Context, tenant string, records []Record) error
	Search(ctx context.Context, tenant string, vector []float32, k int) ([]Result, error)
	DeleteByFilename(ctx context.Context, tenant, filename string) error
	DeleteAll(ctx context.Context, tenant string) error
	Stats(ctx context.Context, tenant string) (count int64, filenames []string, err error)
	Close() error
}
