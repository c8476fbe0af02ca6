// Package tfidf implements a local TF-IDF embedder. It needs no network
// backend: the vocabulary and IDF weights are fitted during the build and
// persisted next to the index, and the model identifier is derived from the
// vocabulary so a query against a differently fitted model is rejected by the
// manifest check.
package tfidf

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"schemeadvisor/internal/embedding"
)

// ModelFileName is the vocabulary artifact written beside the vector index.
const ModelFileName = "tfidf_model.json"

// Embedder is a TF-IDF vectorizer over a fixed corpus vocabulary.
type Embedder struct {
	vocabulary   map[string]int
	idf          []float32
	dimension    int
	modelID      string
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates an unprepared TF-IDF embedder. Prepare or Load must be
// called before embedding.
func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// ModelID identifies the fitted model: "tfidf-" plus a hash of the ordered
// vocabulary, so two different fits never share an id.
func (e *Embedder) ModelID() string { return e.modelID }

// Dimension returns the vocabulary size, or zero before preparation.
func (e *Embedder) Dimension() int { return e.dimension }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float32, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = float32(math.Log((1+n)/(1+float64(df[term]))) + 1.0)
	}
	e.dimension = len(terms)
	e.modelID = modelID(terms)
	e.prepared = true
	return nil
}

// EmbedQuery computes the L2-normalized TF-IDF vector for one text. Unknown
// tokens contribute nothing; an all-unknown text yields the zero vector.
func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	vec := make([]float32, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float32(count) / float32(total) * e.idf[idx]
	}
	return embedding.Normalize(vec), nil
}

// EmbedBatch embeds each text independently, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

type modelFile struct {
	Terms []string  `json:"terms"`
	IDF   []float32 `json:"idf"`
}

// Save persists the fitted vocabulary to dir so queries can reconstruct the
// exact embedding space.
func (e *Embedder) Save(dir string) error {
	if !e.prepared {
		return errors.New("tfidf embedder not prepared")
	}
	terms := make([]string, e.dimension)
	for term, idx := range e.vocabulary {
		terms[idx] = term
	}
	data, err := json.Marshal(modelFile{Terms: terms, IDF: e.idf})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ModelFileName), data, 0o644)
}

// Load restores a fitted embedder from the model file in dir.
func Load(dir string) (*Embedder, error) {
	data, err := os.ReadFile(filepath.Join(dir, ModelFileName))
	if err != nil {
		return nil, fmt.Errorf("load tfidf model: %w", err)
	}
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("decode tfidf model: %w", err)
	}
	if len(mf.Terms) == 0 || len(mf.Terms) != len(mf.IDF) {
		return nil, fmt.Errorf("tfidf model has %d terms and %d idf values", len(mf.Terms), len(mf.IDF))
	}
	e := NewEmbedder()
	e.vocabulary = make(map[string]int, len(mf.Terms))
	for i, term := range mf.Terms {
		e.vocabulary[term] = i
	}
	e.idf = mf.IDF
	e.dimension = len(mf.Terms)
	e.modelID = modelID(mf.Terms)
	e.prepared = true
	return e, nil
}

func modelID(terms []string) string {
	h := sha1.Sum([]byte(strings.Join(terms, "\n")))
	return "tfidf-" + hex.EncodeToString(h[:8])
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
