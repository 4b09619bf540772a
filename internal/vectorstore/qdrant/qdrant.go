package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"librag/internal/vectorstore"
)

// Config contains connection details for a Qdrant server.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	// Instance separates the collections of processes sharing one server.
	Instance string
	Timeout  time.Duration
}

// Factory creates one Qdrant collection per index generation, named
// "{collection}-{name}", or "{collection}-{instance}-{name}" when an
// instance is set.
type Factory struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

func NewFactory(cfg Config) (*Factory, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "librag"
	}
	if cfg.Instance != "" {
		collection += "-" + cfg.Instance
	}
	return &Factory{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// New implements vectorstore.Factory. The collection is created lazily on the
// first non-empty Add, so empty indexes never touch the server.
func (f *Factory) New(_ context.Context, name string, dimension int) (vectorstore.Index, error) {
	if dimension < 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Index{
		f:          f,
		collection: fmt.Sprintf("%s-%s", f.collection, name),
		dimension:  dimension,
	}, nil
}

// Index is a Qdrant-backed vector index using Euclidean distance.
// Point ids are insertion positions.
type Index struct {
	f          *Factory
	collection string
	dimension  int

	mu      sync.RWMutex
	size    int
	created bool
}

// Collection returns the backing collection name.
func (s *Index) Collection() string { return s.collection }

func (s *Index) Add(ctx context.Context, vectors [][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     s.dimension,
				"distance": "Euclid",
			},
		}
		if err := s.f.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.f.url, s.collection), body, nil); err != nil {
			return err
		}
		s.created = true
	}
	points := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		points[i] = map[string]any{
			"id":     s.size + i,
			"vector": v,
		}
	}
	body := map[string]any{"points": points}
	if err := s.f.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.f.url, s.collection), body, nil); err != nil {
		return err
	}
	s.size += len(vectors)
	return nil
}

func (s *Index) Search(ctx context.Context, query []float64, k int) ([]vectorstore.Hit, error) {
	s.mu.RLock()
	size := s.size
	s.mu.RUnlock()
	if k > size {
		k = size
	}
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector": query,
		"limit":  k,
	}
	var resp struct {
		Result []struct {
			ID    int     `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	if err := s.f.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.f.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vectorstore.Hit{Position: r.ID, Distance: r.Score})
	}
	// For Euclid the score is the distance; the server does not order ties.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})
	return hits, nil
}

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Close drops the collection.
func (s *Index) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return nil
	}
	s.created = false
	s.size = 0
	return s.f.do(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.f.url, s.collection), nil, nil)
}

func (f *Factory) do(ctx context.Context, method, url string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("api-key", f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
