package models

import (
	"fmt"
	"strings"
)

// QueryRequest represents a question against a tenant's documents.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate normalizes the request. The question must be non-empty after
// trimming; TopK falls back to defaultK and is capped at maxK.
func (q *QueryRequest) Validate(defaultK, maxK int) error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if q.TopK < 0 {
		return fmt.Errorf("top_k must be positive, got %d", q.TopK)
	}
	if q.TopK == 0 {
		q.TopK = defaultK
	}
	if q.TopK > maxK {
		q.TopK = maxK
	}
	return nil
}
