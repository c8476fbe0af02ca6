// Package retriever joins the vector index and the metadata store into an
// immutable retrieval session. A session is constructed once from the
// persisted artifacts, validated as a matched pair, and is then safe for any
// number of concurrent readers; reloading after a rebuild means opening a new
// session.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"schemeadvisor/internal/config"
	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/ingest"
	"schemeadvisor/internal/logger"
	"schemeadvisor/internal/metastore"
	"schemeadvisor/internal/vectorstore"
	"schemeadvisor/internal/vectorstore/flat"
	"schemeadvisor/internal/vectorstore/qdrant"
)

const defaultTopK = 5

// Session is a read-only view over one build's paired artifacts.
type Session struct {
	embedder domain.Embedder
	index    vectorstore.Searcher
	meta     *metastore.Store
}

// Open loads the artifacts under cfg.Data.IndexDir and validates the pairing.
// The embedder must produce vectors in the same embedding space the index was
// built with; the manifest check enforces that.
func Open(ctx context.Context, cfg *config.AppConfig, embedder domain.Embedder) (*Session, error) {
	meta, err := metastore.Open(filepath.Join(cfg.Data.IndexDir, ingest.MetaFileName))
	if err != nil {
		return nil, err
	}
	var index vectorstore.Searcher
	switch cfg.Index.Type {
	case "flat", "":
		ix, err := flat.Load(filepath.Join(cfg.Data.IndexDir, ingest.VectorsFileName))
		if err != nil {
			return nil, err
		}
		index = ix
	case "qdrant":
		m := meta.Manifest()
		store := qdrant.NewStore(qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
		expected := vectorstore.Tag{
			ModelID:   m.ModelID,
			Dimension: m.Dimension,
			Metric:    m.Metric,
			Rows:      m.Rows,
		}
		if err := store.Open(ctx, expected); err != nil {
			return nil, err
		}
		index = store
	default:
		return nil, fmt.Errorf("unknown index type %q", cfg.Index.Type)
	}
	return NewSession(embedder, index, meta)
}

// NewSession validates that index, metadata and embedder belong together.
// Any disagreement on row count, dimension, metric or model identifier is an
// IndexMismatchError; serving from a misaligned pair is never allowed.
func NewSession(embedder domain.Embedder, index vectorstore.Searcher, meta *metastore.Store) (*Session, error) {
	tag := index.Tag()
	m := meta.Manifest()
	if tag.Rows != m.Rows {
		return nil, &domain.IndexMismatchError{
			Field: "row count",
			Index: strconv.Itoa(tag.Rows),
			Meta:  strconv.Itoa(m.Rows),
		}
	}
	if tag.Rows > 0 {
		if tag.ModelID != m.ModelID {
			return nil, &domain.IndexMismatchError{Field: "embedding model", Index: tag.ModelID, Meta: m.ModelID}
		}
		if tag.Dimension != m.Dimension {
			return nil, &domain.IndexMismatchError{
				Field: "dimension",
				Index: strconv.Itoa(tag.Dimension),
				Meta:  strconv.Itoa(m.Dimension),
			}
		}
		if tag.Metric != m.Metric {
			return nil, &domain.IndexMismatchError{Field: "metric", Index: tag.Metric, Meta: m.Metric}
		}
		if embedder == nil {
			return nil, errors.New("retriever: embedder is required for a non-empty index")
		}
		if id := embedder.ModelID(); id != m.ModelID {
			return nil, &domain.IndexMismatchError{Field: "embedding model", Index: m.ModelID, Meta: id}
		}
	}
	return &Session{embedder: embedder, index: index, meta: meta}, nil
}

// Manifest returns the pairing tag of the loaded build.
func (s *Session) Manifest() metastore.Manifest { return s.meta.Manifest() }

// Len returns the number of indexed passages.
func (s *Session) Len() int { return s.index.Len() }

// Retrieve embeds the query and returns the topK most similar passages,
// highest score first. An empty or whitespace query is rejected before any
// embedding work; an empty index yields an empty list.
func (s *Session) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidQuery
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if s.index.Len() == 0 {
		return []domain.Passage{}, nil
	}
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		var embErr *domain.EmbeddingError
		if errors.As(err, &embErr) {
			return nil, err
		}
		return nil, &domain.EmbeddingError{Model: s.embedder.ModelID(), Err: err}
	}
	hits, err := s.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	passages := make([]domain.Passage, 0, len(hits))
	for _, hit := range hits {
		chunk, err := s.meta.Lookup(hit.Row)
		if err != nil {
			return nil, err
		}
		passages = append(passages, domain.Passage{Chunk: chunk, Score: hit.Score})
	}
	logger.FromContext(ctx).Debug("retrieval done", "query_len", len(query), "results", len(passages))
	return passages, nil
}
