// Package rag wires segmentation, embedding, storage, and generation into
// the ingestion and question answering pipelines.
package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/docid"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/registry"
	"github.com/hyperjump/kotae/internal/segment"
	"github.com/hyperjump/kotae/internal/tenant"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"github.com/hyperjump/kotae/pkg/utils"
)

const (
	// DefaultTopK is the number of chunks retrieved when a query does not
	// specify one.
	DefaultTopK = 5
	// MaxTopK caps client-requested retrieval depth.
	MaxTopK = 20

	// sourceTextLimit bounds the chunk excerpt echoed back in query sources.
	sourceTextLimit = 200
)

// Service orchestrates the document pipelines for all tenants.
type Service struct {
	segmenter *segment.Segmenter
	extractor *extract.Extractor
	embedder  embedding.Embedder
	generator generation.Generator
	store     vectorstore.Store
	registry  registry.Registry
	logger    *zap.Logger

	defaultTopK int
	maxTopK     int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTopKLimits overrides the default and maximum retrieval depth.
func WithTopKLimits(defaultK, maxK int) Option {
	return func(s *Service) {
		if defaultK > 0 {
			s.defaultTopK = defaultK
		}
		if maxK > 0 {
			s.maxTopK = maxK
		}
	}
}

// NewService builds a Service from its pipeline stages.
func NewService(
	segmenter *segment.Segmenter,
	embedder embedding.Embedder,
	generator generation.Generator,
	store vectorstore.Store,
	reg registry.Registry,
	opts ...Option,
) *Service {
	s := &Service{
		segmenter:   segmenter,
		extractor:   extract.NewExtractor(),
		embedder:    embedder,
		generator:   generator,
		store:       store,
		registry:    reg,
		logger:      zap.NewNop(),
		defaultTopK: DefaultTopK,
		maxTopK:     MaxTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest extracts, segments, embeds, and stores a batch of uploaded files
// for one tenant. Extraction and per-file validation failures are recorded
// in the result and do not abort the batch; embedding and store failures
// indicate a broken backend and abort the whole operation.
func (s *Service) Ingest(ctx context.Context, tenantKey string, files []models.FileUpload) (*models.IngestResult, error) {
	key, err := tenant.Validate(tenantKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files provided", ErrValidation)
	}

	result := &models.IngestResult{}
	for _, file := range files {
		fr := models.FileResult{Filename: file.Filename}
		ids, err := s.ingestOne(ctx, key, file)
		if err != nil {
			if errors.Is(err, ErrEmbedding) || errors.Is(err, ErrStore) {
				return nil, err
			}
			s.logger.Warn("file ingestion failed",
				zap.String("tenant", key),
				zap.String("filename", file.Filename),
				zap.Error(err))
			fr.Error = err.Error()
			result.FilesFailed++
		} else {
			fr.Chunks = len(ids)
			result.FilesProcessed++
			result.TotalChunks += len(ids)
			result.ChunkIDs = append(result.ChunkIDs, ids...)
		}
		result.Files = append(result.Files, fr)
	}
	return result, nil
}

func (s *Service) ingestOne(ctx context.Context, key string, file models.FileUpload) ([]string, error) {
	if strings.TrimSpace(file.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is empty", ErrValidation)
	}
	text, err := s.extractor.ExtractBytes(file.Content, filepath.Ext(file.Filename))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return s.indexText(ctx, key, file.Filename, text, int64(len(file.Content)))
}

// IngestText ingests raw text as a named document for one tenant.
func (s *Service) IngestText(ctx context.Context, tenantKey, filename, text string) (*models.IngestResult, error) {
	key, err := tenant.Validate(tenantKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is empty", ErrValidation)
	}
	ids, err := s.indexText(ctx, key, filename, text, int64(len(text)))
	if err != nil {
		return nil, err
	}
	return &models.IngestResult{
		FilesProcessed: 1,
		TotalChunks:    len(ids),
		ChunkIDs:       ids,
		Files:          []models.FileResult{{Filename: filename, Chunks: len(ids)}},
	}, nil
}

// indexText runs the shared segment-embed-store tail of both ingestion paths.
func (s *Service) indexText(ctx context.Context, key, filename, text string, sizeBytes int64) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: document %q has no text content", ErrValidation, filename)
	}

	ns := tenant.Namespace(key)
	documentID := docid.DocumentID(ns, filename)
	chunks := s.segmenter.BuildChunks(key, documentID, filename, text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %q has no text content", ErrValidation, filename)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	// Chunk ids are deterministic, so re-ingesting overwrites in place. The
	// delete clears leftovers when the new version has fewer chunks.
	if err := s.store.DeleteByFilename(ctx, key, filename); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	records := make([]vectorstore.Record, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		records[i] = vectorstore.Record{
			ID:     c.ID,
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				Filename:   filename,
				Text:       c.Text,
				ChunkIndex: c.ChunkIndex,
			},
		}
	}
	if err := s.store.Upsert(ctx, key, records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	doc := &models.Document{
		ID:         documentID,
		Tenant:     key,
		Filename:   filename,
		SizeBytes:  sizeBytes,
		ChunkCount: len(chunks),
		CreatedAt:  time.Now(),
	}
	if err := s.registry.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.logger.Info("document ingested",
		zap.String("tenant", key),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)))
	return ids, nil
}

// Query answers a question from the tenant's documents. When nothing is
// retrieved it returns a canned answer without calling the generator.
func (s *Service) Query(ctx context.Context, tenantKey string, req models.QueryRequest) (*models.QueryResult, error) {
	key, err := tenant.Validate(tenantKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := req.Validate(s.defaultTopK, s.maxTopK); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	start := time.Now()
	vector, err := s.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	hits, err := s.store.Search(ctx, key, vector, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	result := &models.QueryResult{
		Question: req.Question,
		Sources:  []models.Source{},
	}
	if len(hits) == 0 {
		result.Answer = NoContextAnswer
		result.QueryTime = time.Since(start).Seconds()
		return result, nil
	}

	texts := make([]string, len(hits))
	scores := make([]float64, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Payload.Text
		scores[i] = hit.Score
		result.Sources = append(result.Sources, models.Source{
			Text:       utils.Truncate(hit.Payload.Text, sourceTextLimit),
			Filename:   hit.Payload.Filename,
			ChunkIndex: hit.Payload.ChunkIndex,
			Score:      roundScore(hit.Score),
		})
	}

	answer, err := s.generator.Generate(ctx, buildPrompt(buildContext(texts, scores), req.Question))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	result.Answer = answer
	result.QueryTime = time.Since(start).Seconds()

	s.logger.Info("query answered",
		zap.String("tenant", key),
		zap.Int("sources", len(result.Sources)),
		zap.Float64("query_time", result.QueryTime))
	return result, nil
}

// Stats reports the tenant's vector count, distinct filenames, and
// registered documents.
func (s *Service) Stats(ctx context.Context, tenantKey string) (*models.StatsResult, error) {
	key, err := tenant.Validate(tenantKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	count, filenames, err := s.store.Stats(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	docs, err := s.registry.List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return &models.StatsResult{
		Tenant:            key,
		VectorCount:       count,
		DistinctFilenames: filenames,
		Documents:         docs,
	}, nil
}

// DeleteDocument removes one document's chunks and registry entry.
func (s *Service) DeleteDocument(ctx context.Context, tenantKey, filename string) error {
	key, err := tenant.Validate(tenantKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: filename is empty", ErrValidation)
	}
	if err := s.store.DeleteByFilename(ctx, key, filename); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := s.registry.Delete(ctx, key, filename); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	s.logger.Info("document deleted", zap.String("tenant", key), zap.String("filename", filename))
	return nil
}

// DeleteTenant removes all of a tenant's data.
func (s *Service) DeleteTenant(ctx context.Context, tenantKey string) error {
	key, err := tenant.Validate(tenantKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.store.DeleteAll(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := s.registry.DeleteTenant(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	s.logger.Info("tenant data deleted", zap.String("tenant", key))
	return nil
}

func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}
