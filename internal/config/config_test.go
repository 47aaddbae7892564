package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(EnvDataDir, dataDir)
	t.Setenv(EnvAddr, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr)
	assert.Equal(t, dataDir, cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "evidence"), cfg.Paths.Evidence)
	assert.Equal(t, filepath.Join(dataDir, "evidence", "uploads"), cfg.Paths.Uploads)
	assert.Equal(t, filepath.Join(dataDir, "index"), cfg.Paths.Index)
	assert.Equal(t, filepath.Join(dataDir, "logs", "conversations"), cfg.Paths.Conversations)
	assert.Equal(t, 1000, cfg.Chunker.Size)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "qwen2.5:7b-instruct-q4_K_M", cfg.Runtime.Model)
	assert.Equal(t, 60*time.Second, cfg.Runtime.Timeout())
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, DefaultUploadExtensions(), cfg.Upload.Extensions)
}

func TestLoad_FileValuesAndNormalisation(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvAddr, "")
	path := filepath.Join(t.TempDir(), "agentx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
paths:
  data_dir: /srv/agentx
  evidence: /mnt/case
chunker:
  size: 500
  overlap: 50
retrieval:
  top_k: 5
runtime:
  type: cli
  timeout_secs: 10
upload:
  extensions: [PDF, ".TXT"]
embedder:
  type: openai
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/mnt/case", cfg.Paths.Evidence)
	assert.Equal(t, filepath.Join("/mnt/case", "uploads"), cfg.Paths.Uploads)
	assert.Equal(t, filepath.Join("/srv/agentx", "index"), cfg.Paths.Index)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "cli", cfg.Runtime.Type)
	assert.Equal(t, 10*time.Second, cfg.Runtime.Timeout())
	assert.Equal(t, []string{".pdf", ".txt"}, cfg.Upload.Extensions)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":8080\"\npaths:\n  data_dir: /srv/agentx\n"), 0o644))
	t.Setenv(EnvAddr, "0.0.0.0:9000")
	t.Setenv(EnvDataDir, "/tmp/other")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/other", cfg.Paths.DataDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvAddr, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retrieval.SourcesFooter = true
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Retrieval.SourcesFooter)
	assert.Equal(t, cfg.Runtime.Model, loaded.Runtime.Model)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvAddr, "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "agentx", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, filepath.Join(home, ".agentx"), cfg.Paths.DataDir)
}
