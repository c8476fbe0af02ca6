// Package chunker splits extracted document text into bounded, overlapping
// passages for indexing.
package chunker

import (
	"errors"
	"fmt"

	"schemeadvisor/internal/domain"
)

// WindowChunker cuts page text into windows of at most Size runes with
// Overlap runes shared between consecutive chunks. Cuts prefer a sentence
// boundary within a tolerance window before falling back to a hard cut.
// Chunking is deterministic: the same text and parameters always produce the
// same sequence.
type WindowChunker struct {
	size      int
	overlap   int
	tolerance int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, errors.New("chunker: size must be greater than zero")
	}
	if overlap < 0 {
		return nil, errors.New("chunker: overlap cannot be negative")
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d", overlap, size)
	}
	tolerance := size / 8
	if tolerance < 1 {
		tolerance = 1
	}
	return &WindowChunker{size: size, overlap: overlap, tolerance: tolerance}, nil
}

// Chunk splits every page of doc left to right with no gaps. Chunk spans are
// rune offsets into the page text; the final chunk of a page may be shorter
// than the configured size. The global Index field is left zero and assigned
// at insertion time by the build pipeline.
func (c *WindowChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	ordinal := 0
	for _, page := range doc.Pages {
		runes := []rune(page.Text)
		start := 0
		for start < len(runes) {
			end := start + c.size
			if end >= len(runes) {
				end = len(runes)
			} else {
				end = c.snapToBoundary(runes, start, end)
			}
			text := string(runes[start:end])
			if !isBlank(text) {
				chunks = append(chunks, domain.Chunk{
					DocID:    doc.ID,
					FileName: doc.FileName,
					Page:     page.Number,
					Ordinal:  ordinal,
					Start:    start,
					End:      end,
					Text:     text,
				})
				ordinal++
			}
			if end >= len(runes) {
				break
			}
			next := end - c.overlap
			if next <= start {
				next = end
			}
			start = next
		}
	}
	return chunks, nil
}

// snapToBoundary searches backwards from end, at most tolerance runes, for a
// sentence terminator and cuts just after it. Without one the hard cut at end
// stands.
func (c *WindowChunker) snapToBoundary(runes []rune, start, end int) int {
	limit := end - c.tolerance
	if limit < start+1 {
		limit = start + 1
	}
	for j := end; j >= limit; j-- {
		switch runes[j-1] {
		case '.', '!', '?':
			return j
		}
	}
	return end
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return false
		}
	}
	return true
}
