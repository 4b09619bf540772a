package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, url string, batch, retries int) *Client {
	t.Helper()
	t.Setenv("TEST_EMBED_KEY", "secret")
	c, err := NewClient(Config{BaseURL: url, APIKeyEnv: "TEST_EMBED_KEY", BatchSize: batch, MaxRetries: retries})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClientMissingKey(t *testing.T) {
	t.Setenv("TEST_EMBED_MISSING", "")
	if _, err := NewClient(Config{APIKeyEnv: "TEST_EMBED_MISSING"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestEmbedBatchSplitsAndOrders(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		// Reply in reverse order to exercise index-based placement.
		var data []item
		for i := len(body.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float64{float64(len(body.Input[i])), 1}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2, 0)
	texts := []string{"a", "bb", "ccc"}
	vecs, err := c.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed batch: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	for i, text := range texts {
		if vecs[i][0] != float64(len(text)) {
			t.Errorf("vecs[%d] = %v, want first component %d", i, vecs[i], len(text))
		}
	}
	if c.Dimension() != 2 {
		t.Errorf("Dimension() = %d, want 2", c.Dimension())
	}
}

func TestEmbedOllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.25,0.125]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 0)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len = %d, want 3", len(vec))
	}
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 1)
	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestEmbedClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 3)
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 400")
	}
}
