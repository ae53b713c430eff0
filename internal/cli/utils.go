// Package cli provides CLI output helpers for Kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kotae/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteQueryResult writes a query result to w in the given format.
func WriteQueryResult(w io.Writer, result *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\nQ: %s\n\n%s\n", result.Question, result.Answer)
	if len(result.Sources) > 0 {
		fmt.Fprintf(w, "\nSources (%d):\n", len(result.Sources))
		for i, src := range result.Sources {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "[%d] %s (chunk %d) | Score: %.4f\n%s\n",
				i+1, src.Filename, src.ChunkIndex, src.Score, src.Text)
		}
	}
	fmt.Fprintf(w, "\nAnswered in %.2fs\n", result.QueryTime)
	return nil
}

// WriteIngestResult writes an ingestion summary to w in the given format.
func WriteIngestResult(w io.Writer, result *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\nProcessed %d file(s), %d failed, %d chunk(s) indexed\n",
		result.FilesProcessed, result.FilesFailed, result.TotalChunks)
	for _, fr := range result.Files {
		if fr.Error != "" {
			fmt.Fprintf(w, "  ✗ %s: %s\n", fr.Filename, fr.Error)
		} else {
			fmt.Fprintf(w, "  ✓ %s: %d chunk(s)\n", fr.Filename, fr.Chunks)
		}
	}
	return nil
}

// WriteStats writes tenant statistics to w in the given format.
func WriteStats(w io.Writer, stats *models.StatsResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "\nTenant: %s\n", stats.Tenant)
	fmt.Fprintf(w, "Vectors: %d\n", stats.VectorCount)
	fmt.Fprintf(w, "Documents: %d\n", len(stats.Documents))
	for _, doc := range stats.Documents {
		fmt.Fprintf(w, "  %s: %d chunk(s), %d byte(s), added %s\n",
			doc.Filename, doc.ChunkCount, doc.SizeBytes, doc.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
