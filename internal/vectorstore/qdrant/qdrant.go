// Package qdrant is a minimal REST client to Qdrant used as an alternative
// vector index backend. Points are keyed by the dense chunk index, so hits
// join against the metadata store exactly like the flat index.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/vectorstore"
)

const upsertBatch = 256

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Store talks to one Qdrant collection. Vectors are normalized upstream, so
// the collection uses dot-product distance.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	tag        vectorstore.Tag
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Write replaces the collection with the vectors of a fresh build run. The
// model identifier is stored on every point so a later manifest check has
// something to verify against.
func (s *Store) Write(ctx context.Context, vectors [][]float32, tag vectorstore.Tag) error {
	if tag.Dimension <= 0 && len(vectors) > 0 {
		tag.Dimension = len(vectors[0])
	}
	tag.Rows = len(vectors)
	if tag.Metric == "" {
		tag.Metric = vectorstore.MetricInnerProduct
	}
	if err := s.recreateCollection(ctx, tag.Dimension); err != nil {
		return err
	}
	for start := 0; start < len(vectors); start += upsertBatch {
		end := start + upsertBatch
		if end > len(vectors) {
			end = len(vectors)
		}
		points := make([]map[string]any, 0, end-start)
		for row := start; row < end; row++ {
			if len(vectors[row]) != tag.Dimension {
				return fmt.Errorf("qdrant: vector %d has dimension %d, want %d", row, len(vectors[row]), tag.Dimension)
			}
			points = append(points, map[string]any{
				"id":      row,
				"vector":  vectors[row],
				"payload": map[string]any{"model_id": tag.ModelID},
			})
		}
		url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
		if err := s.putJSON(ctx, url, map[string]any{"points": points}); err != nil {
			return err
		}
	}
	s.tag = tag
	return nil
}

// Open verifies the remote collection against the metadata manifest and
// readies the store for searching. Disagreement on dimension, row count or
// embedding model is an IndexMismatchError. The model is checked by sampling
// one point's payload, since Write stamps model_id on every point.
func (s *Store) Open(ctx context.Context, expected vectorstore.Tag) error {
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s", s.url, s.collection)
	if err := s.getJSON(ctx, url, &resp); err != nil {
		return err
	}
	if resp.Result.Config.Params.Vectors.Size != expected.Dimension {
		return &domain.IndexMismatchError{
			Field: "dimension",
			Index: strconv.Itoa(resp.Result.Config.Params.Vectors.Size),
			Meta:  strconv.Itoa(expected.Dimension),
		}
	}
	if resp.Result.PointsCount != expected.Rows {
		return &domain.IndexMismatchError{
			Field: "row count",
			Index: strconv.Itoa(resp.Result.PointsCount),
			Meta:  strconv.Itoa(expected.Rows),
		}
	}
	if expected.Rows > 0 && expected.ModelID != "" {
		remote, err := s.sampleModelID(ctx)
		if err != nil {
			return err
		}
		if remote != expected.ModelID {
			return &domain.IndexMismatchError{
				Field: "embedding model",
				Index: remote,
				Meta:  expected.ModelID,
			}
		}
	}
	s.tag = expected
	return nil
}

// sampleModelID scrolls a single point and returns its model_id payload.
func (s *Store) sampleModelID(ctx context.Context) (string, error) {
	var resp struct {
		Result struct {
			Points []struct {
				Payload struct {
					ModelID string `json:"model_id"`
				} `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection)
	req := map[string]any{"limit": 1, "with_payload": true}
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Result.Points) == 0 {
		return "", errors.New("qdrant: collection has points but scroll returned none")
	}
	return resp.Result.Points[0].Payload.ModelID, nil
}

func (s *Store) Len() int { return s.tag.Rows }

func (s *Store) Tag() vectorstore.Tag { return s.tag }

// Search returns the top-k points by score, ordered by descending score with
// ties broken by lower row. Qdrant's own ordering is not trusted for ties, so
// the hits are re-sorted the same way the flat index sorts.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]vectorstore.Hit, error) {
	if s.tag.Rows == 0 || k <= 0 {
		return nil, nil
	}
	if k > s.tag.Rows {
		k = s.tag.Rows
	}
	req := map[string]any{
		"vector": query,
		"limit":  k,
	}
	var resp struct {
		Result []struct {
			ID    int     `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vectorstore.Hit{Row: r.ID, Score: r.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].Row < hits[j].Row
		}
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}

func (s *Store) recreateCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	// Drop-and-create keeps a rebuild wholesale, matching the flat index.
	delReq, err := http.NewRequestWithContext(
		ctx, http.MethodDelete,
		fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil,
	)
	if err != nil {
		return err
	}
	s.setHeaders(delReq)
	if resp, err := s.client.Do(delReq); err == nil {
		resp.Body.Close()
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Dot",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant GET %s failed: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
