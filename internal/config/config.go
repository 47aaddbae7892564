package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvDataDir = "AGENTX_DATA_DIR"
	EnvAddr    = "AGENTX_ADDR"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ReadTimeoutSecs     int    `yaml:"read_timeout_secs"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs"`
}

// PathsConfig locates the evidence and state directories. Empty entries are
// derived from DataDir.
type PathsConfig struct {
	DataDir       string `yaml:"data_dir"`
	Evidence      string `yaml:"evidence"`
	Uploads       string `yaml:"uploads"`
	Index         string `yaml:"index"`
	Conversations string `yaml:"conversations"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks. Size and
// Overlap are in characters; the sentence fields apply to type "sentence".
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	Size              int    `yaml:"size"`
	Overlap           int    `yaml:"overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk,omitempty"`
	OverlapSentences  int    `yaml:"overlap_sentences,omitempty"`
}

// RetrievalConfig controls how many chunks are spliced into prompts.
type RetrievalConfig struct {
	TopK          int  `yaml:"top_k"`
	SourcesFooter bool `yaml:"sources_footer"`
}

// RuntimeConfig selects the language-model runtime. Type "http" uses an
// OpenAI-compatible endpoint, "cli" executes the ollama binary.
type RuntimeConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Binary      string `yaml:"binary,omitempty"`
	Host        string `yaml:"host,omitempty"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the configured wait for one reply.
func (r RuntimeConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes   int64    `yaml:"max_bytes"`
	Extensions []string `yaml:"extensions"`
}

// ExtractorConfig names the env var holding the PDF library license key.
type ExtractorConfig struct {
	LicenseKeyEnv string `yaml:"license_key_env"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Paths      PathsConfig      `yaml:"paths"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Upload     UploadConfig     `yaml:"upload"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			applyConfigDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./agentx.yaml first, then ~/.config/agentx/config.yaml.
// If neither exists, it writes defaults to ~/.config/agentx/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "agentx.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "agentx", "config.yaml"), nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentx"
	}
	return filepath.Join(home, ".agentx")
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server:     ServerConfig{Addr: "127.0.0.1:5000", ReadTimeoutSecs: 30, ShutdownTimeoutSecs: 10},
		Embedder:   EmbedderConfig{Type: "tfidf"},
		Chunker:    ChunkerConfig{Type: "window", Size: 1000, Overlap: 200},
		Retrieval:  RetrievalConfig{TopK: 3},
		Runtime:    RuntimeConfig{Type: "http", Model: "qwen2.5:7b-instruct-q4_K_M", TimeoutSecs: 60},
		Upload:     UploadConfig{MaxBytes: 50 << 20, Extensions: DefaultUploadExtensions()},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Log:        LogConfig{Level: "info"},
	}
}

// DefaultUploadExtensions is the upload allow-list used when none is configured.
func DefaultUploadExtensions() []string {
	return []string{".pdf", ".txt", ".md", ".markdown", ".html", ".htm", ".mhtml", ".mht"}
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:5000"
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = 30
	}
	if cfg.Server.ShutdownTimeoutSecs == 0 {
		cfg.Server.ShutdownTimeoutSecs = 10
	}

	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = defaultDataDir()
	}
	if cfg.Paths.Evidence == "" {
		cfg.Paths.Evidence = filepath.Join(cfg.Paths.DataDir, "evidence")
	}
	if cfg.Paths.Uploads == "" {
		cfg.Paths.Uploads = filepath.Join(cfg.Paths.Evidence, "uploads")
	}
	if cfg.Paths.Index == "" {
		cfg.Paths.Index = filepath.Join(cfg.Paths.DataDir, "index")
	}
	if cfg.Paths.Conversations == "" {
		cfg.Paths.Conversations = filepath.Join(cfg.Paths.DataDir, "logs", "conversations")
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "window"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 200
		}
	}
	if cfg.Chunker.Type == "sentence" && cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}

	if cfg.Runtime.Type == "" {
		cfg.Runtime.Type = "http"
	}
	if cfg.Runtime.Model == "" {
		cfg.Runtime.Model = "qwen2.5:7b-instruct-q4_K_M"
	}
	if cfg.Runtime.TimeoutSecs == 0 {
		cfg.Runtime.TimeoutSecs = 60
	}

	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 50 << 20
	}
	if len(cfg.Upload.Extensions) == 0 {
		cfg.Upload.Extensions = DefaultUploadExtensions()
	}
	for i, ext := range cfg.Upload.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Upload.Extensions[i] = ext
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
