// Package generation wraps the answer-generation model behind a small interface.
package generation

import "context"

// Generator produces a free-form completion for a prompt. The orchestrator
// treats it as a black box; failures surface to the caller, never as a
// fabricated answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}
