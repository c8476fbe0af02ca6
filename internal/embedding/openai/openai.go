// Package openai implements an embedder backed by an OpenAI-compatible
// embeddings endpoint (OpenAI, Ollama, LM Studio and friends).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/embedding"
)

// Config configures the embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	BatchSize int
	// MaxChars is the deterministic truncation point for over-long inputs,
	// in runes. Inputs beyond it are cut, not rejected.
	MaxChars int
}

// Client talks to an OpenAI-compatible /embeddings endpoint. Vectors are
// L2-normalized before being returned so inner-product search yields cosine
// scores.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	maxChars   int
	dimension  int
	client     *http.Client
	maxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 16000
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		maxChars:   cfg.MaxChars,
		client:     &http.Client{Timeout: t},
		maxRetries: 5,
	}, nil
}

// ModelID identifies the embedding model; it is recorded next to the index so
// mixed embedding spaces are rejected at load time.
func (c *Client) ModelID() string { return c.model }

// Prepare is not required for remote embedding; dimension is learned lazily
// on the first embed call.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors, or
// zero before the first embed call.
func (c *Client) Dimension() int { return c.dimension }

// EmbedQuery embeds a single text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request-sized batches, preserving input order.
// Batching is a transport optimization only; results match one-at-a-time
// embedding.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, &domain.EmbeddingError{Model: c.model, Err: err}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedRequest(ctx context.Context, batch []string) ([][]float32, error) {
	type reqBody struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	inputs := make([]string, len(batch))
	for i, t := range batch {
		inputs[i] = truncate(t, c.maxChars)
	}
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		data, _ := json.Marshal(reqBody{Input: inputs, Model: c.model})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("embeddings request failed: %s", resp.Status)
			if attempt < c.maxRetries {
				time.Sleep(delay)
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("embeddings request failed: %s", resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, lastErr
		}
		return c.decodeVectors(payload, len(batch))
	}
	return nil, lastErr
}

func (c *Client) decodeVectors(payload []byte, want int) ([][]float32, error) {
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(out.Data) != want {
		return nil, fmt.Errorf("embeddings response has %d vectors, want %d", len(out.Data), want)
	}
	vecs := make([][]float32, want)
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= want {
			return nil, fmt.Errorf("embeddings response index %d out of range", item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, errors.New("no embedding returned")
		}
		vecs[item.Index] = embedding.Normalize(item.Embedding)
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("embeddings response missing vector %d", i)
		}
	}
	if c.dimension == 0 {
		c.dimension = len(vecs[0])
	}
	return vecs, nil
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
