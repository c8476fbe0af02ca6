// Package flat implements an exact inner-product vector index held in memory
// and persisted to a single binary file. At the corpus sizes this system
// targets a brute-force scan is faster than maintaining an approximate
// structure and keeps search fully deterministic.
package flat

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"schemeadvisor/internal/embedding"
	"schemeadvisor/internal/vectorstore"
)

var magic = [4]byte{'S', 'A', 'V', 'I'}

const formatVersion = 1

// maxElements caps rows*dimension at load time (512 MiB of float32 data) so
// a corrupt header cannot demand an arbitrarily large allocation.
const maxElements = 1 << 27

// Index is an immutable, ordered collection of embedding vectors. Row i
// corresponds to chunk index i in the metadata store.
type Index struct {
	tag  vectorstore.Tag
	data []float32
}

// Build creates an index from vectors in insertion order. Building from the
// same vectors always yields identical search results.
func Build(vectors [][]float32, tag vectorstore.Tag) (*Index, error) {
	if tag.Dimension <= 0 && len(vectors) > 0 {
		tag.Dimension = len(vectors[0])
	}
	if tag.Metric == "" {
		tag.Metric = vectorstore.MetricInnerProduct
	}
	tag.Rows = len(vectors)
	ix := &Index{tag: tag, data: make([]float32, 0, len(vectors)*tag.Dimension)}
	for i, v := range vectors {
		if len(v) != tag.Dimension {
			return nil, fmt.Errorf("flat: vector %d has dimension %d, want %d", i, len(v), tag.Dimension)
		}
		ix.data = append(ix.data, v...)
	}
	return ix, nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return ix.tag.Rows }

// Tag returns the identity tag the index was built with.
func (ix *Index) Tag() vectorstore.Tag { return ix.tag }

// Search scans every row and returns the k highest-scoring ones, ordered by
// descending score with ties broken by lower row. K is clamped to the index
// size; an empty index returns no hits.
func (ix *Index) Search(_ context.Context, query []float32, k int) ([]vectorstore.Hit, error) {
	if ix.tag.Rows == 0 {
		return nil, nil
	}
	if len(query) != ix.tag.Dimension {
		return nil, fmt.Errorf("flat: query dimension %d, index dimension %d", len(query), ix.tag.Dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > ix.tag.Rows {
		k = ix.tag.Rows
	}
	hits := make([]vectorstore.Hit, ix.tag.Rows)
	dim := ix.tag.Dimension
	for row := 0; row < ix.tag.Rows; row++ {
		score := embedding.Dot(ix.data[row*dim:(row+1)*dim], query)
		hits[row] = vectorstore.Hit{Row: row, Score: float64(score)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].Row < hits[j].Row
		}
		return hits[i].Score > hits[j].Score
	})
	return hits[:k], nil
}

// Save writes the index to path atomically (temp file plus rename).
func (ix *Index) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("flat: create %q: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	if err := ix.encode(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flat: encode %q: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads an index written by Save.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flat: open %q: %w", path, err)
	}
	defer f.Close()
	ix, err := decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("flat: decode %q: %w", path, err)
	}
	return ix, nil
}

func (ix *Index) encode(w *bufio.Writer) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	for _, v := range []uint32{formatVersion, uint32(ix.tag.Dimension), uint32(ix.tag.Rows)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, s := range []string{ix.tag.Metric, ix.tag.ModelID} {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, ix.data)
}

func decode(r *bufio.Reader) (*Index, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, err
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("bad magic %q", gotMagic)
	}
	var version, dim, rows uint32
	for _, p := range []*uint32{&version, &dim, &rows} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, err
		}
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", version)
	}
	if int64(dim)*int64(rows) > maxElements {
		return nil, fmt.Errorf("header claims %d rows of dimension %d", rows, dim)
	}
	metric, err := readString(r)
	if err != nil {
		return nil, err
	}
	modelID, err := readString(r)
	if err != nil {
		return nil, err
	}
	ix := &Index{
		tag: vectorstore.Tag{
			ModelID:   modelID,
			Dimension: int(dim),
			Metric:    metric,
			Rows:      int(rows),
		},
		data: make([]float32, int(dim)*int(rows)),
	}
	if err := binary.Read(r, binary.LittleEndian, ix.data); err != nil {
		return nil, err
	}
	return ix, nil
}

// FileWriter persists a build run to a flat index file.
type FileWriter struct {
	Path string
}

func (w FileWriter) Write(_ context.Context, vectors [][]float32, tag vectorstore.Tag) error {
	ix, err := Build(vectors, tag)
	if err != nil {
		return err
	}
	return ix.Save(w.Path)
}

func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
