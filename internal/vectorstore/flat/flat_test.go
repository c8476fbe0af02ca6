package flat

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemeadvisor/internal/vectorstore"
)

var testTag = vectorstore.Tag{
	ModelID:   "tfidf-deadbeef01234567",
	Dimension: 3,
	Metric:    vectorstore.MetricInnerProduct,
}

func TestBuild_SetsTag(t *testing.T) {
	ix, err := Build([][]float32{{1, 0, 0}, {0, 1, 0}}, testTag)
	require.NoError(t, err)
	tag := ix.Tag()
	assert.Equal(t, 2, tag.Rows)
	assert.Equal(t, 3, tag.Dimension)
	assert.Equal(t, vectorstore.MetricInnerProduct, tag.Metric)
	assert.Equal(t, testTag.ModelID, tag.ModelID)
	assert.Equal(t, 2, ix.Len())
}

func TestBuild_DimensionMismatch(t *testing.T) {
	_, err := Build([][]float32{{1, 0, 0}, {0, 1}}, testTag)
	assert.Error(t, err)
}

func TestSearch_OrdersByScoreDescending(t *testing.T) {
	ix, err := Build([][]float32{
		{0.1, 0, 0},
		{0.9, 0, 0},
		{0.5, 0, 0},
	}, testTag)
	require.NoError(t, err)

	hits, err := ix.Search(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 1, hits[0].Row)
	assert.Equal(t, 2, hits[1].Row)
	assert.Equal(t, 0, hits[2].Row)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_TieBreaksOnLowerRow(t *testing.T) {
	ix, err := Build([][]float32{
		{0.5, 0, 0},
		{0.5, 0, 0},
		{0.7, 0, 0},
	}, testTag)
	require.NoError(t, err)

	hits, err := ix.Search(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 2, hits[0].Row)
	assert.Equal(t, 0, hits[1].Row)
	assert.Equal(t, 1, hits[2].Row)
}

func TestSearch_ClampsKToIndexSize(t *testing.T) {
	ix, err := Build([][]float32{{1, 0, 0}, {0, 1, 0}}, testTag)
	require.NoError(t, err)

	hits, err := ix.Search(context.Background(), []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearch_EmptyIndex(t *testing.T) {
	ix, err := Build(nil, vectorstore.Tag{Metric: vectorstore.MetricInnerProduct})
	require.NoError(t, err)

	hits, err := ix.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	ix, err := Build([][]float32{{1, 0, 0}}, testTag)
	require.NoError(t, err)

	_, err = ix.Search(context.Background(), []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestSaveLoad_Roundtrip(t *testing.T) {
	ix, err := Build([][]float32{
		{0.25, -0.5, 0.75},
		{0.1, 0.2, 0.3},
	}, testTag)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vectors.bin")
	require.NoError(t, ix.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ix.Tag(), loaded.Tag())

	query := []float32{0.2, -0.4, 0.9}
	want, err := ix.Search(context.Background(), query, 2)
	require.NoError(t, err)
	got, err := loaded.Search(context.Background(), query, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an index file at all"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsOversizedHeader(t *testing.T) {
	// well-formed header claiming far more data than any real build writes
	var buf bytes.Buffer
	buf.Write(magic[:])
	for _, v := range []uint32{formatVersion, 1 << 20, 1 << 20} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	for _, s := range []string{"ip", "tfidf-deadbeef"} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(s))))
		buf.WriteString(s)
	}

	path := filepath.Join(t.TempDir(), "vectors.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "header claims")
}

func TestFileWriter_WritesLoadableIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	w := FileWriter{Path: path}
	require.NoError(t, w.Write(context.Background(), [][]float32{{1, 0, 0}}, testTag))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, testTag.ModelID, loaded.Tag().ModelID)
}
