package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemeadvisor/internal/chunker"
	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/embedding/tfidf"
	"schemeadvisor/internal/metastore"
	"schemeadvisor/internal/vectorstore"
	"schemeadvisor/internal/vectorstore/flat"
)

// fakeExtractor serves canned page text keyed by file name; unknown files
// fail like an unreadable PDF would.
type fakeExtractor struct {
	pages map[string][]string
}

func (f *fakeExtractor) Extract(path string) (domain.Document, error) {
	name := filepath.Base(path)
	pages, ok := f.pages[name]
	if !ok {
		return domain.Document{}, &domain.ExtractionError{DocID: name, Err: errors.New("unreadable")}
	}
	doc := domain.Document{
		ID:       strings.TrimSuffix(name, filepath.Ext(name)),
		FileName: name,
	}
	for i, text := range pages {
		doc.Pages = append(doc.Pages, domain.Page{Number: i + 1, Text: text})
	}
	return doc, nil
}

// failingWriter stands in for an index backend that is down.
type failingWriter struct{}

func (failingWriter) Write(context.Context, [][]float32, vectorstore.Tag) error {
	return errors.New("backend down")
}

func touchPDFs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644))
	}
}

func newTestBuilder(t *testing.T, extractor domain.Extractor, indexDir string) *Builder {
	t.Helper()
	ck, err := chunker.NewWindowChunker(200, 40)
	require.NoError(t, err)
	writer := flat.FileWriter{Path: filepath.Join(indexDir, VectorsFileName)}
	return NewBuilder(extractor, ck, tfidf.NewEmbedder(), writer)
}

func TestBuild_ProducesPairedArtifacts(t *testing.T) {
	pdfDir := t.TempDir()
	indexDir := filepath.Join(t.TempDir(), "index")
	touchPDFs(t, pdfDir, "pension.pdf", "scholarship.pdf")

	extractor := &fakeExtractor{pages: map[string][]string{
		"scholarship.pdf": {
			"Applicants must have family income below Rs. 2,00,000 per year.",
			"The scholarship covers tuition and examination fees.",
		},
		"pension.pdf": {
			"The old age pension pays Rs. 3,000 per month.",
		},
	}}

	builder := newTestBuilder(t, extractor, indexDir)
	stats, err := builder.Build(context.Background(), Params{PDFDir: pdfDir, IndexDir: indexDir})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 3, stats.Chunks)
	assert.NotEmpty(t, stats.ModelID)
	assert.Positive(t, stats.Dimension)

	ix, err := flat.Load(filepath.Join(indexDir, VectorsFileName))
	require.NoError(t, err)
	meta, err := metastore.Open(filepath.Join(indexDir, MetaFileName))
	require.NoError(t, err)

	assert.Equal(t, ix.Len(), meta.Len())
	assert.Equal(t, ix.Tag().ModelID, meta.Manifest().ModelID)
	assert.Equal(t, ix.Tag().Dimension, meta.Manifest().Dimension)

	// documents are ingested in name order, so pension comes first
	first, err := meta.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, "pension.pdf", first.FileName)

	model, err := tfidf.Load(indexDir)
	require.NoError(t, err)
	assert.Equal(t, meta.Manifest().ModelID, model.ModelID())
}

func TestBuild_WritesChunksJSONL(t *testing.T) {
	pdfDir := t.TempDir()
	indexDir := filepath.Join(t.TempDir(), "index")
	touchPDFs(t, pdfDir, "doc.pdf")

	extractor := &fakeExtractor{pages: map[string][]string{
		"doc.pdf": {"Page one content for indexing.", "Page two content for indexing."},
	}}

	builder := newTestBuilder(t, extractor, indexDir)
	stats, err := builder.Build(context.Background(), Params{PDFDir: pdfDir, IndexDir: indexDir})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(indexDir, ChunksFileName))
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec struct {
			Index    int    `json:"idx"`
			DocID    string `json:"doc_id"`
			FileName string `json:"file_name"`
			PageNo   int    `json:"page_no"`
			Text     string `json:"text"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		assert.Equal(t, lines, rec.Index)
		assert.Equal(t, "doc", rec.DocID)
		assert.NotEmpty(t, rec.Text)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, stats.Chunks, lines)
}

func TestBuild_SkipsUnreadableDocuments(t *testing.T) {
	pdfDir := t.TempDir()
	indexDir := filepath.Join(t.TempDir(), "index")
	touchPDFs(t, pdfDir, "broken.pdf", "good.pdf")

	extractor := &fakeExtractor{pages: map[string][]string{
		"good.pdf": {"Readable content about housing subsidies and residence proof."},
	}}

	builder := newTestBuilder(t, extractor, indexDir)
	stats, err := builder.Build(context.Background(), Params{PDFDir: pdfDir, IndexDir: indexDir})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Skipped)

	meta, err := metastore.Open(filepath.Join(indexDir, MetaFileName))
	require.NoError(t, err)
	row, err := meta.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, "good.pdf", row.FileName)
}

func TestBuild_WriterFailureKeepsPreviousArtifacts(t *testing.T) {
	pdfDir := t.TempDir()
	indexDir := filepath.Join(t.TempDir(), "index")
	touchPDFs(t, pdfDir, "pension.pdf")

	extractor := &fakeExtractor{pages: map[string][]string{
		"pension.pdf": {"The old age pension pays Rs. 3,000 per month."},
	}}
	builder := newTestBuilder(t, extractor, indexDir)
	_, err := builder.Build(context.Background(), Params{PDFDir: pdfDir, IndexDir: indexDir})
	require.NoError(t, err)

	before, err := metastore.Open(filepath.Join(indexDir, MetaFileName))
	require.NoError(t, err)
	wantRows := before.Len()
	wantModel := before.Manifest().ModelID

	// grow the corpus, then rebuild against a dead index backend
	touchPDFs(t, pdfDir, "scholarship.pdf")
	extractor.pages["scholarship.pdf"] = []string{"The scholarship covers tuition and examination fees."}
	ck, err := chunker.NewWindowChunker(200, 40)
	require.NoError(t, err)
	broken := NewBuilder(extractor, ck, tfidf.NewEmbedder(), failingWriter{})
	_, err = broken.Build(context.Background(), Params{PDFDir: pdfDir, IndexDir: indexDir})
	require.Error(t, err)

	meta, err := metastore.Open(filepath.Join(indexDir, MetaFileName))
	require.NoError(t, err)
	assert.Equal(t, wantRows, meta.Len())
	assert.Equal(t, wantModel, meta.Manifest().ModelID)

	staged, err := filepath.Glob(filepath.Join(indexDir, ".build-*"))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestBuild_EmptyCorpus(t *testing.T) {
	pdfDir := t.TempDir()
	indexDir := filepath.Join(t.TempDir(), "index")

	builder := newTestBuilder(t, &fakeExtractor{}, indexDir)
	stats, err := builder.Build(context.Background(), Params{PDFDir: pdfDir, IndexDir: indexDir})
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
	assert.Zero(t, stats.Chunks)

	ix, err := flat.Load(filepath.Join(indexDir, VectorsFileName))
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())

	meta, err := metastore.Open(filepath.Join(indexDir, MetaFileName))
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Len())

	// no fitted model to persist for an empty build
	assert.NoFileExists(t, filepath.Join(indexDir, tfidf.ModelFileName))
}
