// Package metastore persists chunk metadata in a SQLite file, one row per
// chunk, keyed by the dense chunk index shared with the vector index. A
// manifest row records the embedding model, dimension, metric and row count
// so a mismatched index/metadata pair is rejected at load time instead of
// silently serving misaligned results.
package metastore

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"schemeadvisor/internal/domain"
)

const schema = `
CREATE TABLE manifest (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	model_id  TEXT    NOT NULL,
	dimension INTEGER NOT NULL,
	metric    TEXT    NOT NULL,
	row_count INTEGER NOT NULL,
	built_at  TEXT    NOT NULL
);
CREATE TABLE chunks (
	idx        INTEGER PRIMARY KEY,
	doc_id     TEXT    NOT NULL,
	file_name  TEXT    NOT NULL,
	page       INTEGER NOT NULL,
	ordinal    INTEGER NOT NULL,
	span_start INTEGER NOT NULL,
	span_end   INTEGER NOT NULL,
	text       TEXT    NOT NULL
);
`

// Manifest tags a built metadata store for pairing with its vector index.
type Manifest struct {
	ModelID   string
	Dimension int
	Metric    string
	Rows      int
	BuiltAt   time.Time
}

// Create writes a fresh metadata store at path. Chunks must already carry
// their dense index, equal to their position. The file is written to a temp
// path and renamed so a failed build leaves no partial artifact.
func Create(path string, chunks []domain.Chunk, m Manifest) error {
	for i := range chunks {
		if chunks[i].Index != i {
			return fmt.Errorf("metastore: chunk at position %d has index %d", i, chunks[i].Index)
		}
	}
	m.Rows = len(chunks)

	tmp := path + ".tmp"
	os.Remove(tmp)
	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("metastore: open %q: %w", tmp, err)
	}
	if err := create(db, chunks, m); err != nil {
		db.Close()
		os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func create(db *sql.DB, chunks []domain.Chunk, m Manifest) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("metastore: create schema: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(
		`INSERT INTO manifest (id, model_id, dimension, metric, row_count, built_at) VALUES (1, ?, ?, ?, ?, ?)`,
		m.ModelID, m.Dimension, m.Metric, m.Rows, m.BuiltAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("metastore: insert manifest: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO chunks (idx, doc_id, file_name, page, ordinal, span_start, span_end, text) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range chunks {
		c := &chunks[i]
		if _, err := stmt.Exec(c.Index, c.DocID, c.FileName, c.Page, c.Ordinal, c.Start, c.End, c.Text); err != nil {
			return fmt.Errorf("metastore: insert chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

// Store holds the fully loaded, read-only metadata of one build. Safe for
// unlimited concurrent readers.
type Store struct {
	manifest Manifest
	rows     []domain.Chunk
}

// Open bulk-loads the metadata store at path. The chunk table must be dense
// and agree with the manifest row count.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("metastore: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metastore: open %q: %w", path, err)
	}
	defer db.Close()

	s := &Store{}
	if err := s.loadManifest(db); err != nil {
		return nil, err
	}
	if err := s.loadChunks(db); err != nil {
		return nil, err
	}
	if len(s.rows) != s.manifest.Rows {
		return nil, &domain.IndexMismatchError{
			Field: "row count",
			Index: strconv.Itoa(len(s.rows)),
			Meta:  strconv.Itoa(s.manifest.Rows),
		}
	}
	return s, nil
}

func (s *Store) loadManifest(db *sql.DB) error {
	var builtAt string
	err := db.QueryRow(
		`SELECT model_id, dimension, metric, row_count, built_at FROM manifest WHERE id = 1`,
	).Scan(&s.manifest.ModelID, &s.manifest.Dimension, &s.manifest.Metric, &s.manifest.Rows, &builtAt)
	if err != nil {
		return fmt.Errorf("metastore: load manifest: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, builtAt); err == nil {
		s.manifest.BuiltAt = t
	}
	return nil
}

func (s *Store) loadChunks(db *sql.DB) error {
	rows, err := db.Query(
		`SELECT idx, doc_id, file_name, page, ordinal, span_start, span_end, text FROM chunks ORDER BY idx`,
	)
	if err != nil {
		return fmt.Errorf("metastore: load chunks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.Index, &c.DocID, &c.FileName, &c.Page, &c.Ordinal, &c.Start, &c.End, &c.Text); err != nil {
			return fmt.Errorf("metastore: scan chunk: %w", err)
		}
		if c.Index != len(s.rows) {
			return fmt.Errorf("metastore: chunk indexes are not dense at %d", c.Index)
		}
		s.rows = append(s.rows, c)
	}
	return rows.Err()
}

// Manifest returns the pairing tag recorded at build time.
func (s *Store) Manifest() Manifest { return s.manifest }

// Len returns the number of metadata rows.
func (s *Store) Len() int { return len(s.rows) }

// Lookup returns the metadata row for a chunk index. An index outside
// [0, Len) is a hard error, never a silent miss.
func (s *Store) Lookup(i int) (domain.Chunk, error) {
	if i < 0 || i >= len(s.rows) {
		return domain.Chunk{}, fmt.Errorf("metastore: chunk index %d outside [0, %d)", i, len(s.rows))
	}
	return s.rows[i], nil
}
