package generation

import (
	"context"
	"fmt"
	"sync"
)

// MockGenerator is a canned generator for tests. It records every prompt it
// receives so tests can assert the generator was (or was not) called.
type MockGenerator struct {
	Answer string
	Err    error

	mu      sync.Mutex
	prompts []string
}

// Generate returns the configured answer or error, recording the prompt.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.Answer == "" {
		return fmt.Sprintf("mock answer to prompt of %d chars", len(prompt)), nil
	}
	return m.Answer, nil
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// LastPrompt returns the most recent prompt, or empty when never called.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Close is a no-op for MockGenerator.
func (m *MockGenerator) Close() error {
	return nil
}
