package vectorstore

import "context"

// Hit is one nearest-neighbor result: the insertion position of the matched
// vector and its Euclidean distance to the query.
type Hit struct {
	Position int
	Distance float64
}

// Index is a nearest-neighbor structure built once per index generation.
// Vectors are only ever appended; the whole index is discarded on rebuild.
type Index interface {
	// Add bulk-inserts vectors; positions continue from the current size.
	Add(ctx context.Context, vectors [][]float64) error
	// Search returns up to k hits by ascending distance, ties by position.
	// k larger than Len is clamped; an empty index yields no hits.
	Search(ctx context.Context, query []float64, k int) ([]Hit, error)
	Len() int
	// Close releases backend resources. The index must not be used afterwards.
	Close(ctx context.Context) error
}

// Factory creates empty indexes for a new generation.
type Factory interface {
	New(ctx context.Context, name string, dimension int) (Index, error)
}
