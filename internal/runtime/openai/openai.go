// Package openai talks to an OpenAI-compatible chat completions endpoint,
// such as Ollama's /v1 API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"agentx/internal/runtime"
)

var _ runtime.Runtime = (*Runtime)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434/v1"
	DefaultModel   = "qwen2.5:7b-instruct-q4_K_M"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the HTTP runtime.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// Runtime generates replies through chat completions.
type Runtime struct {
	client  *goopenai.Client
	baseURL string
	model   string
	timeout time.Duration
}

// New creates an HTTP runtime. A missing API key is replaced by a placeholder
// since local servers ignore it.
func New(cfg Config) *Runtime {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	key := ""
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		key = "ollama"
	}
	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{}
	return &Runtime{
		client:  goopenai.NewClientWithConfig(oc),
		baseURL: oc.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func (r *Runtime) Name() string  { return "Ollama" }
func (r *Runtime) Model() string { return r.model }

// Generate sends prompt as a single user message and returns the reply text.
func (r *Runtime) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: r.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", r.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", &runtime.Error{Kind: runtime.Failed, Runtime: r.Name(), Err: errors.New("empty response from model")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Ping lists models to check the server is reachable.
func (r *Runtime) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := r.client.ListModels(ctx); err != nil {
		return r.classify(ctx, err)
	}
	return nil
}

func (r *Runtime) classify(ctx context.Context, err error) error {
	rerr := &runtime.Error{Kind: runtime.Failed, Runtime: r.Name(), Target: r.model, Timeout: r.timeout, Err: err}
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		rerr.Kind = runtime.Timeout
	case errors.Is(err, syscall.ECONNREFUSED):
		rerr.Kind = runtime.NotRunning
	case errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound,
		errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusNotFound:
		rerr.Kind = runtime.NotFound
		rerr.Target = fmt.Sprintf("%s (model %s)", r.baseURL, r.model)
	case errors.As(err, &netErr) && netErr.Timeout():
		rerr.Kind = runtime.Timeout
	}
	return rerr
}
