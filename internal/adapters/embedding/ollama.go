// Package embedding provides embedding adapters.
// Adapters implement ports.Embedder; the domain layer knows nothing about Ollama.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/logger"
)

const (
	DefaultOllamaURL = "http://localhost:11434"
	// DefaultModel is the Ollama packaging of all-MiniLM-L6-v2.
	DefaultModel = "all-minilm"
)

// OllamaEmbedder implements ports.Embedder using the Ollama API.
type OllamaEmbedder struct {
	baseURL     string
	model       string
	concurrency int
	client      *http.Client
	log         *logger.Logger
}

// OllamaOption configures an OllamaEmbedder.
type OllamaOption func(*OllamaEmbedder)

// WithConcurrency bounds the parallel requests made by EmbedBatch.
func WithConcurrency(n int) OllamaOption {
	return func(a *OllamaEmbedder) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(a *OllamaEmbedder) { a.client = c }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logger.Logger) OllamaOption {
	return func(a *OllamaEmbedder) { a.log = l }
}

// NewOllamaEmbedder creates a new Ollama embedding adapter.
func NewOllamaEmbedder(baseURL, model string, opts ...OllamaOption) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultModel
	}
	a := &OllamaEmbedder{
		baseURL:     baseURL,
		model:       model,
		concurrency: 4,
		client:      &http.Client{Timeout: 60 * time.Second},
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Model returns the embedding model name recorded with the index.
func (a *OllamaEmbedder) Model() string { return a.model }

// Embed generates an embedding for a single text.
func (a *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	jsonData, err := json.Marshal(ollamaEmbedRequest{Model: a.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", a.model)
	}

	a.log.Debug("embedded text", "model", a.model, "dims", len(embedResp.Embedding), "elapsed", time.Since(start))
	return embedResp.Embedding, nil
}

// EmbedBatch generates embeddings for texts, preserving order. Requests run
// in parallel up to the configured concurrency; the first failure cancels
// the rest.
func (a *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			emb, err := a.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}
