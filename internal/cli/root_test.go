package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemeadvisor/internal/config"
	"schemeadvisor/internal/embedding/tfidf"
	"schemeadvisor/internal/vectorstore/flat"
	"schemeadvisor/internal/vectorstore/qdrant"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "index")
	assert.Contains(t, names, "search")
	assert.Contains(t, names, "ask")
	assert.Contains(t, names, "chat")

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestNewBuildEmbedder_TFIDF(t *testing.T) {
	cfg := &config.AppConfig{Embedder: config.EmbedderConfig{Type: "tfidf"}}
	e, err := newBuildEmbedder(cfg)
	require.NoError(t, err)
	assert.IsType(t, &tfidf.Embedder{}, e)
}

func TestNewBuildEmbedder_Unknown(t *testing.T) {
	cfg := &config.AppConfig{Embedder: config.EmbedderConfig{Type: "word2vec"}}
	_, err := newBuildEmbedder(cfg)
	assert.Error(t, err)
}

func TestNewQueryEmbedder_MissingModelFallsBackToUnprepared(t *testing.T) {
	cfg := &config.AppConfig{
		Data:     config.DataConfig{IndexDir: t.TempDir()},
		Embedder: config.EmbedderConfig{Type: "tfidf"},
	}
	e, err := newQueryEmbedder(cfg)
	require.NoError(t, err)
	assert.Empty(t, e.ModelID())
}

func TestNewIndexWriter_Flat(t *testing.T) {
	cfg := &config.AppConfig{
		Data:  config.DataConfig{IndexDir: t.TempDir()},
		Index: config.IndexConfig{Type: "flat"},
	}
	w, err := newIndexWriter(cfg)
	require.NoError(t, err)
	assert.IsType(t, flat.FileWriter{}, w)
}

func TestNewIndexWriter_Qdrant(t *testing.T) {
	cfg := &config.AppConfig{
		Index: config.IndexConfig{
			Type:   "qdrant",
			Qdrant: &config.QdrantConfig{URL: "http://localhost:6333", Collection: "schemes"},
		},
	}
	w, err := newIndexWriter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &qdrant.Store{}, w)
}

func TestNewGenerator_MissingKey(t *testing.T) {
	t.Setenv("TEST_ABSENT_GEMINI_KEY", "")
	cfg := &config.AppConfig{
		Generator: config.GeneratorConfig{
			Type:   "gemini",
			Gemini: &config.GeminiConfig{APIKeyEnv: "TEST_ABSENT_GEMINI_KEY"},
		},
	}
	_, err := newGenerator(cfg)
	assert.Error(t, err)
}
