package memory

import (
	"context"
	"math"
	"testing"

	"librag/internal/vectorstore"
)

var _ vectorstore.Index = (*Index)(nil)

func newIndex(t *testing.T, vectors [][]float64) *Index {
	t.Helper()
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	idx, err := NewIndex(dim)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := idx.Add(context.Background(), vectors); err != nil {
		t.Fatalf("add: %v", err)
	}
	return idx
}

func TestSearchOrdersByDistance(t *testing.T) {
	idx := newIndex(t, [][]float64{{10, 0}, {1, 0}, {3, 4}, {0, 0.5}})
	hits, err := idx.Search(context.Background(), []float64{0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []int{3, 1, 2}
	if len(hits) != len(want) {
		t.Fatalf("len = %d, want %d", len(hits), len(want))
	}
	for i, pos := range want {
		if hits[i].Position != pos {
			t.Errorf("hits[%d].Position = %d, want %d", i, hits[i].Position, pos)
		}
	}
	if math.Abs(hits[2].Distance-5) > 1e-12 {
		t.Errorf("distance = %f, want 5", hits[2].Distance)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	idx := newIndex(t, [][]float64{{1, 0}, {0, 1}, {-1, 0}, {0, -1}})
	hits, err := idx.Search(context.Background(), []float64{0, 0}, 4)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i, h := range hits {
		if h.Position != i {
			t.Errorf("hits[%d].Position = %d, want %d", i, h.Position, i)
		}
	}
}

func TestSearchClampsK(t *testing.T) {
	idx := newIndex(t, [][]float64{{1}, {2}})
	hits, err := idx.Search(context.Background(), []float64{0}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("len = %d, want 2", len(hits))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, _ := NewIndex(0)
	hits, err := idx.Search(context.Background(), []float64{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("empty index search should not fail: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("len = %d, want 0", len(hits))
	}
}

func TestAddDimensionMismatch(t *testing.T) {
	idx, _ := NewIndex(2)
	if err := idx.Add(context.Background(), [][]float64{{1, 2, 3}}); err == nil {
		t.Fatal("expected dimension mismatch")
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d after failed add", idx.Len())
	}
}
