package domain

import "context"

// Document is the extracted text of one source PDF, split by page.
// Documents are immutable once extracted; a rebuild replaces them wholesale.
type Document struct {
	ID       string
	FileName string
	Pages    []Page
}

// Page holds the cleaned text of a single PDF page.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded passage of one document, the unit of retrieval.
// Index is the dense zero-based insertion order into the vector index and is
// the join key between the index and the metadata store.
type Chunk struct {
	Index    int
	DocID    string
	FileName string
	Page     int
	Ordinal  int
	Start    int
	End      int
	Text     string
}

// Passage is a retrieved chunk with its similarity score.
type Passage struct {
	Chunk
	Score float64
}

// Extractor pulls the plain text of a single source document.
type Extractor interface {
	Extract(path string) (Document, error)
}

// Chunker splits a document into ordered, overlapping chunks.
// Chunking the same document with the same parameters must always yield the
// same sequence.
type Chunker interface {
	Chunk(doc Document) ([]Chunk, error)
}

// Embedder converts text into fixed-length dense vectors. The same model must
// be used for every chunk and every query; ModelID identifies it and is
// recorded alongside the index.
type Embedder interface {
	ModelID() string
	Dimension() int
	Prepare(corpus []string) error
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever answers a query with the top-K most similar passages.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Passage, error)
}

// Generator is the external answer-generation collaborator. It consumes a
// fully assembled prompt and returns free-text prose.
type Generator interface {
	ModelName() string
	Generate(ctx context.Context, prompt string) (string, error)
}
