package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemeadvisor/internal/logger"
)

func TestClean_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", Clean("  a \n\n b \t  c  "))
}

func TestClean_StripsNulBytes(t *testing.T) {
	assert.Equal(t, "income limit", Clean("income\x00limit"))
}

func TestClean_Empty(t *testing.T) {
	assert.Equal(t, "", Clean("   \n\t "))
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewPDFExtractor(logger.New(os.Stderr, false))
	_, err := e.Extract(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestExtract_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a pdf"), 0o644))

	e := NewPDFExtractor(logger.New(os.Stderr, false))
	_, err := e.Extract(path)
	assert.Error(t, err)
}
