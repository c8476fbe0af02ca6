// Package ingest turns a directory of PDF files into the paired retrieval
// artifacts: the vector index, the metadata store and a chunks.jsonl debug
// dump. A build is a one-shot batch job; nothing is persisted if embedding
// fails, and rerunning with identical inputs reproduces the same artifacts.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/logger"
	"schemeadvisor/internal/metastore"
	"schemeadvisor/internal/vectorstore"
)

// Artifact file names inside the index directory.
const (
	VectorsFileName = "vectors.bin"
	MetaFileName    = "meta.db"
	ChunksFileName  = "chunks.jsonl"
)

// Builder runs the extract, chunk, embed, persist pipeline.
type Builder struct {
	extractor domain.Extractor
	chunker   domain.Chunker
	embedder  domain.Embedder
	writer    vectorstore.Writer
}

// Params locates the corpus and the output directory.
type Params struct {
	PDFDir   string
	IndexDir string
}

// Stats summarizes one build run.
type Stats struct {
	Documents int
	Skipped   int
	Chunks    int
	Dimension int
	ModelID   string
}

// modelSaver is implemented by embedders whose fitted model must be persisted
// beside the index (the TF-IDF vocabulary).
type modelSaver interface {
	Save(dir string) error
}

func NewBuilder(
	extractor domain.Extractor,
	chunker domain.Chunker,
	embedder domain.Embedder,
	writer vectorstore.Writer,
) *Builder {
	return &Builder{extractor: extractor, chunker: chunker, embedder: embedder, writer: writer}
}

// Build ingests every *.pdf under p.PDFDir in name order. A document that
// cannot be extracted is skipped with a warning; a failure anywhere before
// the staged artifacts are promoted leaves the previous artifact set intact.
func (b *Builder) Build(ctx context.Context, p Params) (Stats, error) {
	log := logger.FromContext(ctx)
	var stats Stats

	paths, err := filepath.Glob(filepath.Join(p.PDFDir, "*.pdf"))
	if err != nil {
		return stats, fmt.Errorf("list %q: %w", p.PDFDir, err)
	}
	sort.Strings(paths)

	chunks := make([]domain.Chunk, 0)
	for _, path := range paths {
		doc, err := b.extractor.Extract(path)
		if err != nil {
			log.Warn("skipping unreadable document", "path", path, "error", err)
			stats.Skipped++
			continue
		}
		docChunks, err := b.chunker.Chunk(doc)
		if err != nil {
			return stats, fmt.Errorf("chunk %s: %w", doc.ID, err)
		}
		for i := range docChunks {
			docChunks[i].Index = len(chunks)
			chunks = append(chunks, docChunks[i])
		}
		stats.Documents++
		log.Debug("document ingested", "doc", doc.ID, "pages", len(doc.Pages), "chunks", len(docChunks))
	}
	stats.Chunks = len(chunks)

	vectors, tag, err := b.embed(ctx, chunks)
	if err != nil {
		return stats, err
	}
	stats.Dimension = tag.Dimension
	stats.ModelID = tag.ModelID

	if err := os.MkdirAll(p.IndexDir, 0o755); err != nil {
		return stats, fmt.Errorf("create %q: %w", p.IndexDir, err)
	}

	// The metadata artifacts are staged in a scratch directory and promoted
	// only after the vector index write succeeds, so a failure anywhere in
	// between never leaves a fresh index beside stale metadata.
	stage, err := os.MkdirTemp(p.IndexDir, ".build-")
	if err != nil {
		return stats, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	manifest := metastore.Manifest{
		ModelID:   tag.ModelID,
		Dimension: tag.Dimension,
		Metric:    tag.Metric,
		Rows:      len(chunks),
		BuiltAt:   time.Now(),
	}
	if err := metastore.Create(filepath.Join(stage, MetaFileName), chunks, manifest); err != nil {
		return stats, err
	}
	if err := writeChunksJSONL(filepath.Join(stage, ChunksFileName), chunks); err != nil {
		return stats, err
	}
	if saver, ok := b.embedder.(modelSaver); ok && len(chunks) > 0 {
		if err := saver.Save(stage); err != nil {
			return stats, fmt.Errorf("save embedding model: %w", err)
		}
	}
	if err := b.writer.Write(ctx, vectors, tag); err != nil {
		return stats, fmt.Errorf("write vector index: %w", err)
	}
	if err := promoteStaged(stage, p.IndexDir); err != nil {
		return stats, err
	}
	log.Info("index built",
		"documents", stats.Documents,
		"skipped", stats.Skipped,
		"chunks", stats.Chunks,
		"dimension", stats.Dimension,
		"model", stats.ModelID,
	)
	return stats, nil
}

// embed prepares the embedder over the chunk corpus and embeds every chunk in
// insertion order. A zero-document corpus produces an empty index with an
// empty tag rather than an error.
func (b *Builder) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, vectorstore.Tag, error) {
	tag := vectorstore.Tag{Metric: vectorstore.MetricInnerProduct}
	if len(chunks) == 0 {
		return nil, tag, nil
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	if err := b.embedder.Prepare(texts); err != nil {
		return nil, tag, &domain.EmbeddingError{Model: b.embedder.ModelID(), Err: err}
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, tag, err
	}
	if len(vectors) != len(chunks) {
		return nil, tag, &domain.EmbeddingError{
			Model: b.embedder.ModelID(),
			Err:   fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)),
		}
	}
	tag.ModelID = b.embedder.ModelID()
	tag.Dimension = len(vectors[0])
	tag.Rows = len(vectors)
	return vectors, tag, nil
}

// promoteStaged renames every staged artifact into the index directory.
func promoteStaged(stage, indexDir string) error {
	entries, err := os.ReadDir(stage)
	if err != nil {
		return fmt.Errorf("read staging dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if err := os.Rename(filepath.Join(stage, name), filepath.Join(indexDir, name)); err != nil {
			return fmt.Errorf("promote %q: %w", name, err)
		}
	}
	return nil
}

type chunkRecord struct {
	Index    int    `json:"idx"`
	DocID    string `json:"doc_id"`
	FileName string `json:"file_name"`
	PageNo   int    `json:"page_no"`
	ChunkNo  int    `json:"chunk_no"`
	Text     string `json:"text"`
}

func writeChunksJSONL(path string, chunks []domain.Chunk) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write %q: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range chunks {
		c := &chunks[i]
		rec := chunkRecord{
			Index:    c.Index,
			DocID:    c.DocID,
			FileName: c.FileName,
			PageNo:   c.Page,
			ChunkNo:  c.Ordinal,
			Text:     c.Text,
		}
		if err := enc.Encode(rec); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
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
