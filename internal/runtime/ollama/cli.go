// Package ollama runs prompts through the ollama binary, one process per prompt.
package ollama

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"agentx/internal/runtime"
)

var _ runtime.Runtime = (*CLI)(nil)

// Default configuration values.
const (
	DefaultBinary  = "ollama"
	DefaultHost    = "http://localhost:11434"
	DefaultModel   = "qwen2.5:7b-instruct-q4_K_M"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the CLI runtime.
type Config struct {
	Binary  string
	Host    string
	Model   string
	Timeout time.Duration
}

// CLI executes `<binary> run <model> <prompt>` and returns stdout.
type CLI struct {
	binary  string
	host    string
	model   string
	timeout time.Duration
	http    *http.Client
}

// NewCLI creates a CLI runtime.
func NewCLI(cfg Config) *CLI {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &CLI{
		binary:  cfg.Binary,
		host:    strings.TrimSuffix(cfg.Host, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *CLI) Name() string  { return "Ollama" }
func (c *CLI) Model() string { return c.model }

// Binary resolves the configured binary on PATH. On failure the configured
// name is returned with the lookup error.
func (c *CLI) Binary() (string, error) {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return c.binary, err
	}
	return path, nil
}

// Ping checks the ollama server answers on its API port.
func (c *CLI) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &runtime.Error{Kind: runtime.NotRunning, Runtime: c.Name(), Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &runtime.Error{Kind: runtime.NotRunning, Runtime: c.Name(), Err: errors.New(resp.Status)}
	}
	return nil
}

// Generate requires a reachable server, then runs the binary with a bounded wait.
func (c *CLI) Generate(ctx context.Context, prompt string) (string, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return "", &runtime.Error{Kind: runtime.NotFound, Runtime: c.Name(), Target: c.binary, Err: err}
	}
	if err := c.Ping(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, "run", c.model, prompt)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	err := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", &runtime.Error{Kind: runtime.Timeout, Runtime: c.Name(), Timeout: c.timeout, Err: ctx.Err()}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return "", &runtime.Error{Kind: runtime.NotFound, Runtime: c.Name(), Target: c.binary, Err: err}
	case err != nil:
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &runtime.Error{Kind: runtime.Failed, Runtime: c.Name(), Err: errors.New(msg)}
	}
	return strings.TrimSpace(stdout.String()), nil
}
