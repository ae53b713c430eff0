// Package registry tracks which documents each tenant has ingested. It is
// the system of record for document metadata; chunk content lives in the
// vector store.
package registry

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Registry persists per-tenant document metadata.
type Registry interface {
	// Upsert records a document for a tenant, replacing a previous entry
	// with the same filename.
	Upsert(ctx context.Context, doc *models.Document) error

	// Get returns a tenant's document by filename, or nil if unknown.
	Get(ctx context.Context, tenantKey, filename string) (*models.Document, error)

	// List returns a tenant's documents ordered by creation time, newest first.
	List(ctx context.Context, tenantKey string) ([]*models.Document, error)

	// Delete removes a tenant's document by filename. Unknown filenames are
	// not an error.
	Delete(ctx context.Context, tenantKey, filename string) error

	// DeleteTenant removes every document belonging to a tenant.
	DeleteTenant(ctx context.Context, tenantKey string) error

	// Count returns the number of documents a tenant has.
	Count(ctx context.Context, tenantKey string) (int64, error)

	// Close releases underlying resources.
	Close() error
}
