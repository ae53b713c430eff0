// Package segment splits extracted document text into overlapping,
// bounded-length chunks at natural boundaries.
package segment

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hyperjump/kotae/internal/docid"
	"github.com/hyperjump/kotae/internal/models"
)

// DefaultBoundaries are the cut points preferred over mid-sentence splits,
// in priority order. The set is configurable because extracted PDF text
// varies in how it marks sentence ends.
var DefaultBoundaries = []string{". ", "! ", "? ", "\n"}

// Segmenter splits text into chunks of at most MaxLen characters with
// Overlap characters shared between consecutive chunks. It is pure: the
// same input and configuration always produce the same chunk sequence.
type Segmenter struct {
	maxLen     int
	overlap    int
	boundaries []string
}

// NewSegmenter creates a segmenter. overlap must be non-negative and
// strictly less than maxLen, otherwise the window could never advance.
func NewSegmenter(maxLen, overlap int, boundaries []string) (*Segmenter, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxLen)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", overlap)
	}
	if overlap >= maxLen {
		return nil, fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)", overlap, maxLen)
	}
	if len(boundaries) == 0 {
		boundaries = DefaultBoundaries
	}
	return &Segmenter{maxLen: maxLen, overlap: overlap, boundaries: boundaries}, nil
}

// Segment splits text into ordered chunks. Empty or whitespace-only input
// yields no chunks. Each chunk is trimmed and at most MaxLen characters;
// ordering equals left-to-right document order.
func (s *Segmenter) Segment(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= s.maxLen {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + s.maxLen
		if end >= len(text) {
			if tail := strings.TrimSpace(text[start:]); tail != "" {
				chunks = append(chunks, tail)
			}
			break
		}
		cut := s.cutPoint(text, start, end)
		if chunk := strings.TrimSpace(text[start:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := cut - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// cutPoint picks where to end the window [start, end). Sentence boundaries
// win over word boundaries; a boundary inside the first overlap characters
// of the window is rejected so the cursor keeps moving. Falls back to the
// raw window end when the window has no usable break at all.
func (s *Segmenter) cutPoint(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range s.boundaries {
		if idx := strings.LastIndex(window, sep); idx != -1 {
			cut := idx + len(sep)
			if cut > s.overlap {
				return start + cut
			}
		}
	}
	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return start + idx + 1
	}
	return end
}

// BuildChunks segments text and assigns deterministic chunk ids and
// sequential indices for the given document.
func (s *Segmenter) BuildChunks(tenant, documentID, filename, text string) []*models.Chunk {
	parts := s.Segment(text)
	chunks := make([]*models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, &models.Chunk{
			ID:         docid.ChunkID(documentID, i),
			DocumentID: documentID,
			Tenant:     tenant,
			Filename:   filename,
			Text:       part,
			ChunkIndex: i,
		})
	}
	return chunks
}
