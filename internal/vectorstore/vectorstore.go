// Package vectorstore defines the vector index contract shared by the flat
// file-backed index and the Qdrant backend.
package vectorstore

import "context"

// MetricInnerProduct is the only metric built today. Vectors are normalized
// at embed time, so inner-product scores are cosine similarities.
const MetricInnerProduct = "ip"

// Tag identifies a built index: it is written into the index artifact and
// into the metadata manifest, and the two must agree at load time.
type Tag struct {
	ModelID   string
	Dimension int
	Metric    string
	Rows      int
}

// Hit is one nearest-neighbor result. Row is the dense chunk index used to
// join against the metadata store.
type Hit struct {
	Row   int
	Score float64
}

// Searcher answers top-K similarity queries over a built index.
type Searcher interface {
	// Search returns at most k hits ordered by descending score, ties broken
	// by lower row. K is clamped to the index size.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
	Tag() Tag
}

// Writer persists the ordered vectors of one build run. Row i of the written
// index must correspond to chunk index i.
type Writer interface {
	Write(ctx context.Context, vectors [][]float32, tag Tag) error
}
