package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	a, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(context.Background(), "hello")
	c, _ := e.Embed(context.Background(), "goodbye")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different embeddings")
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	e := NewMockEmbedder(32)
	emb, _ := e.Embed(context.Background(), "normalize me")
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("embedding not unit length: norm^2 = %f", sum)
	}
}

func TestMockEmbedder_BatchOrder(t *testing.T) {
	e := NewMockEmbedder(8)
	texts := []string{"one", "two", "three"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 {
		t.Fatalf("got %d vectors", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(context.Background(), text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch vector %d does not match single embed", i)
			}
		}
	}
}

func newEmbeddingsTestServer(t *testing.T, dims int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		var resp embeddingResponse
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbedder_Batch(t *testing.T) {
	calls := 0
	srv := newEmbeddingsTestServer(t, 4, &calls)
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Dimensions: 4})
	if err != nil {
		t.Fatal(err)
	}
	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected a single batched request, got %d", calls)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors", len(vectors))
	}
	for i, v := range vectors {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: first component %f", i, v[0])
		}
	}
}

func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1]}]}`)
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestOpenAIEmbedder_MissingKey(t *testing.T) {
	t.Setenv("KOTAE_TEST_NO_KEY", "")
	if _, err := NewOpenAIEmbedder(OpenAIConfig{APIKeyEnv: "KOTAE_TEST_NO_KEY"}); err == nil {
		t.Error("expected error when API key env is empty")
	}
}

func TestCachedEmbedder_SkipsRepeatCalls(t *testing.T) {
	calls := 0
	srv := newEmbeddingsTestServer(t, 4, &calls)
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")
	inner, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Dimensions: 4})
	if err != nil {
		t.Fatal(err)
	}
	e := NewCachedEmbedder(inner, 100)
	ctx := context.Background()
	if _, err := e.EmbedBatch(ctx, []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.EmbedBatch(ctx, []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected cache to absorb the second batch, got %d calls", calls)
	}
	if _, err := e.Embed(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("cached single embed still called the backend: %d calls", calls)
	}
}
