package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"agentx/internal/config"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvAddr, "")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestNew_WiresIngestionAndChat(t *testing.T) {
	cfg := testConfig(t)
	closed := httptest.NewServer(http.NotFoundHandler())
	cfg.Runtime.BaseURL = closed.URL + "/v1"
	closed.Close()

	require.NoError(t, os.MkdirAll(cfg.Paths.Evidence, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Evidence, "memo.txt"),
		[]byte("The courier delivered the parcel to the wrong address."), 0o644))

	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	assert.False(t, a.Index.Available(ctx))

	report, err := a.Ingest.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.True(t, a.Index.Available(ctx))

	reply, err := a.Assistant.Ask(ctx, "where did the courier deliver the parcel?")
	require.NoError(t, err)
	assert.True(t, reply.Failed)
	assert.Contains(t, reply.Response, "server is not running")
	assert.NotNil(t, a.Server().Handler())
}

func TestNew_RejectsUnknownComponents(t *testing.T) {
	cases := map[string]func(*config.AppConfig){
		"embedder":   func(c *config.AppConfig) { c.Embedder.Type = "word2vec" },
		"chunker":    func(c *config.AppConfig) { c.Chunker.Type = "paragraph" },
		"summarizer": func(c *config.AppConfig) { c.Summarizer.Type = "llm" },
		"runtime":    func(c *config.AppConfig) { c.Runtime.Type = "grpc" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			mutate(cfg)
			_, err := New(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestNew_OpenAIEmbedderNeedsKeyForHostedAPI(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("AGENTX_TEST_MISSING_KEY", "")
	cfg.Embedder = config.EmbedderConfig{Type: "openai", OpenAI: &config.OpenAIEmbedderConfig{
		BaseURL:   "https://api.openai.com/v1",
		APIKeyEnv: "AGENTX_TEST_MISSING_KEY",
	}}
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
