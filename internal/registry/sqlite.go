package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/tenant"
)

// SQLiteRegistry implements Registry on a SQLite database. Rows are keyed by
// (tenant namespace, filename) so re-ingesting a file replaces its entry.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT NOT NULL,
		tenant TEXT NOT NULL,
		filename TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant, filename)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert records a document, replacing any previous row for the same
// tenant and filename.
func (r *SQLiteRegistry) Upsert(ctx context.Context, doc *models.Document) error {
	ns := tenant.Namespace(doc.Tenant)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, tenant, filename, size_bytes, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant, filename) DO UPDATE SET
			id = excluded.id,
			size_bytes = excluded.size_bytes,
			chunk_count = excluded.chunk_count,
			created_at = excluded.created_at`,
		doc.ID, ns, doc.Filename, doc.SizeBytes, doc.ChunkCount, doc.CreatedAt,
	)
	return err
}

// Get returns a tenant's document by filename, or nil if unknown.
func (r *SQLiteRegistry) Get(ctx context.Context, tenantKey, filename string) (*models.Document, error) {
	ns := tenant.Namespace(tenantKey)
	var doc models.Document
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant, filename, size_bytes, chunk_count, created_at
		 FROM documents WHERE tenant = ? AND filename = ?`,
		ns, filename,
	).Scan(&doc.ID, &doc.Tenant, &doc.Filename, &doc.SizeBytes, &doc.ChunkCount, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns a tenant's documents, newest first.
func (r *SQLiteRegistry) List(ctx context.Context, tenantKey string) ([]*models.Document, error) {
	ns := tenant.Namespace(tenantKey)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant, filename, size_bytes, chunk_count, created_at
		 FROM documents WHERE tenant = ? ORDER BY created_at DESC, filename`,
		ns,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Tenant, &doc.Filename, &doc.SizeBytes, &doc.ChunkCount, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Delete removes a tenant's document by filename.
func (r *SQLiteRegistry) Delete(ctx context.Context, tenantKey, filename string) error {
	ns := tenant.Namespace(tenantKey)
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE tenant = ? AND filename = ?`, ns, filename)
	return err
}

// DeleteTenant removes every document belonging to a tenant.
func (r *SQLiteRegistry) DeleteTenant(ctx context.Context, tenantKey string) error {
	ns := tenant.Namespace(tenantKey)
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE tenant = ?`, ns)
	return err
}

// Count returns the number of documents a tenant has.
func (r *SQLiteRegistry) Count(ctx context.Context, tenantKey string) (int64, error) {
	ns := tenant.Namespace(tenantKey)
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE tenant = ?`, ns).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
