package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"

	"github.com/hyperjump/kotae/internal/tenant"
)

const (
	payloadKeyTenant     = "tenant"
	payloadKeyFilename   = "filename"
	payloadKeyText       = "text"
	payloadKeyChunkIndex = "chunk_index"

	scrollPageSize = 256
)

// QdrantStore implements Store on a Qdrant collection. All points live in
// one collection; isolation comes from a mandatory tenant payload field that
// every read and delete filters on.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// QdrantConfig holds connection details for the Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// NewQdrantStore connects to Qdrant and ensures the collection exists with
// cosine distance and the configured vector size.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "kotae"
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	s := &QdrantStore{client: client, collection: cfg.Collection, dimensions: cfg.Dimensions}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(s.dimensions),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// tenantFilter matches all points belonging to the namespace, optionally
// narrowed to one filename.
func tenantFilter(ns, filename string) *qdrant.Filter {
	must := []*qdrant.Condition{qdrant.NewMatch(payloadKeyTenant, ns)}
	if filename != "" {
		must = append(must, qdrant.NewMatch(payloadKeyFilename, filename))
	}
	return &qdrant.Filter{Must: must}
}

// Upsert writes records into the tenant's namespace, overwriting by point id.
func (s *QdrantStore) Upsert(ctx context.Context, tenantKey string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ns := tenant.Namespace(tenantKey)
	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadKeyTenant:     ns,
				payloadKeyFilename:   rec.Payload.Filename,
				payloadKeyText:       rec.Payload.Text,
				payloadKeyChunkIndex: rec.Payload.ChunkIndex,
			}),
		}
	}
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Search returns up to k hits from the tenant's namespace, best first.
func (s *QdrantStore) Search(ctx context.Context, tenantKey string, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	ns := tenant.Namespace(tenantKey)
	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         tenantFilter(ns, ""),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	results := make([]Result, 0, len(points))
	for _, p := range points {
		results = append(results, Result{
			ID:      pointIDString(p.Id),
			Score:   float64(p.Score),
			Payload: payloadFromQdrant(ns, p.Payload),
		})
	}
	return results, nil
}

// DeleteByFilename removes the tenant's points for one filename.
func (s *QdrantStore) DeleteByFilename(ctx context.Context, tenantKey, filename string) error {
	return s.deleteByFilter(ctx, tenantFilter(tenant.Namespace(tenantKey), filename))
}

// DeleteAll removes every point in the tenant's namespace.
func (s *QdrantStore) DeleteAll(ctx context.Context, tenantKey string) error {
	return s.deleteByFilter(ctx, tenantFilter(tenant.Namespace(tenantKey), ""))
}

func (s *QdrantStore) deleteByFilter(ctx context.Context, filter *qdrant.Filter) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// Stats counts the tenant's points and scrolls for its distinct filenames.
func (s *QdrantStore) Stats(ctx context.Context, tenantKey string) (int64, []string, error) {
	ns := tenant.Namespace(tenantKey)
	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         tenantFilter(ns, ""),
		Exact:          &exact,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant count: %w", err)
	}

	seen := make(map[string]bool)
	var offset *qdrant.PointId
	limit := uint32(scrollPageSize)
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         tenantFilter(ns, ""),
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude(payloadKeyFilename),
		})
		if err != nil {
			return 0, nil, fmt.Errorf("qdrant scroll: %w", err)
		}
		added := 0
		for _, p := range points {
			name := payloadFromQdrant(ns, p.Payload).Filename
			if name != "" && !seen[name] {
				seen[name] = true
				added++
			}
		}
		if len(points) < scrollPageSize {
			break
		}
		// Offset-based paging can re-deliver the boundary point; stop when a
		// full page contributed nothing new.
		if added == 0 && offset != nil {
			break
		}
		offset = points[len(points)-1].Id
	}

	filenames := make([]string, 0, len(seen))
	for name := range seen {
		filenames = append(filenames, name)
	}
	sort.Strings(filenames)
	return int64(count), filenames, nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func payloadFromQdrant(ns string, payload map[string]*qdrant.Value) Payload {
	out := Payload{Tenant: ns}
	if v, ok := payload[payloadKeyFilename]; ok {
		out.Filename = v.GetStringValue()
	}
	if v, ok := payload[payloadKeyText]; ok {
		out.Text = v.GetStringValue()
	}
	if v, ok := payload[payloadKeyChunkIndex]; ok {
		out.ChunkIndex = int(v.GetIntegerValue())
	}
	return out
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}
