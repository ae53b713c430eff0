package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	reg, err := NewSQLiteRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestSQLiteRegistry_CRUD(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:         "0191b7a0-0000-0000-0000-000000000001",
		Tenant:     "acme",
		Filename:   "report.pdf",
		SizeBytes:  2048,
		ChunkCount: 3,
	}
	if err := reg.Upsert(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := reg.Get(ctx, "acme", "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected document, got nil")
	}
	if got.ChunkCount != 3 || got.SizeBytes != 2048 {
		t.Errorf("got %+v", got)
	}

	list, err := reg.List(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	if err := reg.Delete(ctx, "acme", "report.pdf"); err != nil {
		t.Fatal(err)
	}
	got, err = reg.Get(ctx, "acme", "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}

	// Deleting an unknown filename is not an error.
	if err := reg.Delete(ctx, "acme", "ghost.txt"); err != nil {
		t.Errorf("delete of unknown filename errored: %v", err)
	}
}

func TestSQLiteRegistry_UpsertReplaces(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	first := &models.Document{
		ID:         "0191b7a0-0000-0000-0000-000000000002",
		Tenant:     "acme",
		Filename:   "notes.txt",
		ChunkCount: 2,
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	if err := reg.Upsert(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := &models.Document{
		ID:         "0191b7a0-0000-0000-0000-000000000002",
		Tenant:     "acme",
		Filename:   "notes.txt",
		ChunkCount: 5,
	}
	if err := reg.Upsert(ctx, second); err != nil {
		t.Fatal(err)
	}

	count, err := reg.Count(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after re-upsert, got %d", count)
	}
	got, err := reg.Get(ctx, "acme", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChunkCount != 5 {
		t.Errorf("expected replaced chunk count 5, got %d", got.ChunkCount)
	}
}

func TestSQLiteRegistry_TenantScoping(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	for i, tn := range []string{"tenant-a", "tenant-b"} {
		doc := &models.Document{
			ID:       "0191b7a0-0000-0000-0000-00000000001" + string(rune('0'+i)),
			Tenant:   tn,
			Filename: "shared-name.txt",
		}
		if err := reg.Upsert(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	countA, err := reg.Count(ctx, "tenant-a")
	if err != nil {
		t.Fatal(err)
	}
	if countA != 1 {
		t.Errorf("tenant-a count = %d, want 1", countA)
	}

	if err := reg.DeleteTenant(ctx, "tenant-a"); err != nil {
		t.Fatal(err)
	}
	countA, _ = reg.Count(ctx, "tenant-a")
	countB, _ := reg.Count(ctx, "tenant-b")
	if countA != 0 {
		t.Errorf("tenant-a count after wipe = %d, want 0", countA)
	}
	if countB != 1 {
		t.Errorf("tenant-b count = %d, want 1", countB)
	}
}

func TestSQLiteRegistry_NamespaceFolding(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:       "0191b7a0-0000-0000-0000-000000000020",
		Tenant:   "Acme-Corp",
		Filename: "a.txt",
	}
	if err := reg.Upsert(ctx, doc); err != nil {
		t.Fatal(err)
	}

	got, err := reg.Get(ctx, "acme-corp", "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("expected folded tenant key to find the same row")
	}
}
