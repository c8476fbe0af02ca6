package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery rejects empty or whitespace-only query text before any
// retrieval work is done.
var ErrInvalidQuery = errors.New("query text is empty")

// ExtractionError marks a single unreadable or corrupt source document.
// Ingestion skips the document and continues with the rest of the corpus.
type ExtractionError struct {
	DocID string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.DocID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError reports a failure of the embedding backend. Fatal for a
// build; surfaced as a retrieval failure for a query.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed with %s: %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexMismatchError means the persisted vector index and metadata store do
// not form a matched pair. Fatal at load time; the session must not serve
// misaligned results.
type IndexMismatchError struct {
	Field string
	Index string
	Meta  string
}

func (e *IndexMismatchError) Error() string {
	return fmt.Sprintf("index/metadata mismatch on %s: index has %q, metadata has %q", e.Field, e.Index, e.Meta)
}

// GenerationError reports a failed or timed-out answer-generation call. The
// retrieved passages remain available to the caller.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate with %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
