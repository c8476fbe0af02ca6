package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"schemeadvisor/internal/answer/gemini"
	"schemeadvisor/internal/config"
	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/embedding/openai"
	"schemeadvisor/internal/embedding/tfidf"
	"schemeadvisor/internal/ingest"
	"schemeadvisor/internal/vectorstore"
	"schemeadvisor/internal/vectorstore/flat"
	"schemeadvisor/internal/vectorstore/qdrant"
)

// newBuildEmbedder returns a fresh embedder for an index build.
func newBuildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		return newOpenAIEmbedder(cfg.Embedder.OpenAI)
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}

// newQueryEmbedder returns an embedder in the same embedding space as the
// persisted index. TF-IDF model state lives next to the index.
func newQueryEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		e, err := tfidf.Load(cfg.Data.IndexDir)
		if errors.Is(err, os.ErrNotExist) {
			// Empty builds have no fitted model; the session only needs
			// the embedder once there are rows to search.
			return tfidf.NewEmbedder(), nil
		}
		return e, err
	case "openai":
		return newOpenAIEmbedder(cfg.Embedder.OpenAI)
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}

func newOpenAIEmbedder(c *config.OpenAIEmbedderConfig) (domain.Embedder, error) {
	if c == nil {
		c = &config.OpenAIEmbedderConfig{}
	}
	return openai.NewClient(openai.Config{
		BaseURL:   c.BaseURL,
		APIKeyEnv: c.APIKeyEnv,
		Model:     c.Model,
		Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		BatchSize: c.BatchSize,
		MaxChars:  c.MaxChars,
	})
}

func newIndexWriter(cfg *config.AppConfig) (vectorstore.Writer, error) {
	switch cfg.Index.Type {
	case "flat", "":
		return flat.FileWriter{Path: filepath.Join(cfg.Data.IndexDir, ingest.VectorsFileName)}, nil
	case "qdrant":
		q := cfg.Index.Qdrant
		if q == nil {
			q = &config.QdrantConfig{}
		}
		return qdrant.NewStore(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown index type %q", cfg.Index.Type)
	}
}

func newGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	switch cfg.Generator.Type {
	case "gemini", "":
		g := cfg.Generator.Gemini
		if g == nil {
			g = &config.GeminiConfig{}
		}
		return gemini.NewClient(gemini.Config{
			APIKeyEnv: g.APIKeyEnv,
			Model:     g.Model,
			Timeout:   time.Duration(g.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown generator type %q", cfg.Generator.Type)
	}
}
