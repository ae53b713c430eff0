package rag

import "errors"

// Sentinel errors classifying pipeline failures. Callers use errors.Is to
// decide how to report them; the HTTP layer maps ErrValidation to 400 and
// everything else to 500.
var (
	ErrValidation = errors.New("validation failed")
	ErrExtraction = errors.New("text extraction failed")
	ErrEmbedding  = errors.New("embedding failed")
	ErrStore      = errors.New("vector store operation failed")
	ErrGeneration = errors.New("answer generation failed")
)
