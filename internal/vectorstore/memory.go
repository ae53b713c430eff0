package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/tenant"
)

// MemoryStore is an in-memory Store using brute-force cosine similarity.
// Suitable for tests and single-node deployments without a vector backend.
type MemoryStore struct {
	dimensions int
	mu         sync.RWMutex
	namespaces map[string]map[string]Record
}

// NewMemoryStore creates an in-memory store expecting vectors of the given
// dimension. A non-positive dimension disables length validation.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{
		dimensions: dimensions,
		namespaces: make(map[string]map[string]Record),
	}
}

// Upsert stores records under the tenant's namespace, overwriting by ID.
func (m *MemoryStore) Upsert(ctx context.Context, tenantKey string, records []Record) error {
	ns := tenant.Namespace(tenantKey)
	m.mu.Lock()
	defer m.mu.Unlock()
	space := m.namespaces[ns]
	if space == nil {
		space = make(map[string]Record)
		m.namespaces[ns] = space
	}
	for _, rec := range records {
		if m.dimensions > 0 && len(rec.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(rec.Vector), m.dimensions)
		}
		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		rec.Vector = vec
		rec.Payload.Tenant = ns
		space[rec.ID] = rec
	}
	return nil
}

// Search returns up to k records from the tenant's namespace ordered by
// descending cosine similarity. An unknown tenant yields no results.
func (m *MemoryStore) Search(ctx context.Context, tenantKey string, vector []float32, k int) ([]Result, error) {
	if m.dimensions > 0 && len(vector) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), m.dimensions)
	}
	ns := tenant.Namespace(tenantKey)
	m.mu.RLock()
	defer m.mu.RUnlock()
	space := m.namespaces[ns]
	if k <= 0 || len(space) == 0 {
		return nil, nil
	}
	results := make([]Result, 0, len(space))
	for _, rec := range space {
		results = append(results, Result{
			ID:      rec.ID,
			Score:   cosine(vector, rec.Vector),
			Payload: rec.Payload,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// DeleteByFilename removes the tenant's records whose payload filename
// matches exactly. Removing nothing is not an error.
func (m *MemoryStore) DeleteByFilename(ctx context.Context, tenantKey, filename string) error {
	ns := tenant.Namespace(tenantKey)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.namespaces[ns] {
		if rec.Payload.Filename == filename {
			delete(m.namespaces[ns], id)
		}
	}
	return nil
}

// DeleteAll removes every record in the tenant's namespace.
func (m *MemoryStore) DeleteAll(ctx context.Context, tenantKey string) error {
	ns := tenant.Namespace(tenantKey)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, ns)
	return nil
}

// Stats returns the record count and sorted distinct filenames for the tenant.
func (m *MemoryStore) Stats(ctx context.Context, tenantKey string) (int64, []string, error) {
	ns := tenant.Namespace(tenantKey)
	m.mu.RLock()
	defer m.mu.RUnlock()
	space := m.namespaces[ns]
	seen := make(map[string]bool)
	for _, rec := range space {
		seen[rec.Payload.Filename] = true
	}
	filenames := make([]string, 0, len(seen))
	for name := range seen {
		filenames = append(filenames, name)
	}
	sort.Strings(filenames)
	return int64(len(space)), filenames, nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

// cosine returns the cosine similarity of a and b, 0 when either is zero.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
