package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// Name identifies this embedder in persisted indexes.
const Name = "openai"

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
// Pointed at Ollama's /v1 endpoint it embeds with a local model.
type Client struct {
	client    *goopenai.Client
	model     string
	mu        sync.Mutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
// Local endpoints do not need a key, so a missing one falls back to a placeholder.
func NewClient(cfg Config) (*Client, error) {
	key := ""
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if key == "" {
		if strings.Contains(cfg.BaseURL, "api.openai.com") {
			return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
		}
		key = "ollama"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: t}
	return &Client{client: goopenai.NewClientWithConfig(oc), model: cfg.Model}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return Name }

// Model returns the embedding model name.
func (c *Client) Model() string { return c.model }

// Prepare is not required for remote embedding. Dimension is set on first embed.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}
	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(c.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	raw := resp.Data[0].Embedding
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(vec)
	}
	c.mu.Unlock()
	return vec, nil
}
