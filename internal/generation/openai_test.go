package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: "  the answer  "}})
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")
	g, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := g.Generate(context.Background(), "question with context")
	if err != nil {
		t.Fatal(err)
	}
	if got != "the answer" {
		t.Errorf("got %q, want trimmed answer", got)
	}
}

func TestOpenAIGenerator_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")
	g, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate(context.Background(), "q"); err == nil {
		t.Error("expected error from 503 response")
	}
}

func TestMockGenerator_Records(t *testing.T) {
	m := &MockGenerator{Answer: "canned"}
	got, err := m.Generate(context.Background(), "first prompt")
	if err != nil || got != "canned" {
		t.Fatalf("got %q, %v", got, err)
	}
	if m.Calls() != 1 || m.LastPrompt() != "first prompt" {
		t.Errorf("calls=%d last=%q", m.Calls(), m.LastPrompt())
	}
}
