// Package models defines core data structures for tenants, documents, chunks, and queries.
package models

import "time"

// Document represents one uploaded file, scoped to a tenant.
type Document struct {
	ID         string    `json:"id" db:"id"`
	Tenant     string    `json:"tenant" db:"tenant"`
	Filename   string    `json:"filename" db:"filename"`
	SizeBytes  int64     `json:"size_bytes" db:"size_bytes"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Chunk is a contiguous span of a document's extracted text, the retrieval unit.
// Chunks are immutable once created and are destroyed only with their document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Tenant     string    `json:"tenant"`
	Filename   string    `json:"filename"`
	Text       string    `json:"text"`
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"-"`
}

// FileUpload is one file submitted for ingestion.
type FileUpload struct {
	Filename string
	Content  []byte
}
