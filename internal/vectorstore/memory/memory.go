package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"librag/internal/vectorstore"
)

// Index is an exact in-memory index using a flat Euclidean scan.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
}

// NewIndex creates an empty index for vectors of the given dimension.
// A zero dimension is accepted for indexes that stay empty.
func NewIndex(dimension int) (*Index, error) {
	if dimension < 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Index{dimension: dimension}, nil
}

// Factory builds memory indexes.
type Factory struct{}

// New implements vectorstore.Factory.
func (Factory) New(_ context.Context, _ string, dimension int) (vectorstore.Index, error) {
	return NewIndex(dimension)
}

func (s *Index) Add(_ context.Context, vectors [][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *Index) Search(_ context.Context, query []float64, k int) ([]vectorstore.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k > len(s.vectors) {
		k = len(s.vectors)
	}
	if k <= 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, errors.New("query dimension mismatch")
	}
	hits := make([]vectorstore.Hit, len(s.vectors))
	for i, v := range s.vectors {
		hits[i] = vectorstore.Hit{Position: i, Distance: l2(v, query)}
	}
	// Stable sort keeps insertion order among equal distances.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits[:k], nil
}

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *Index) Close(context.Context) error { return nil }

func l2(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
