// Package app assembles the components from configuration. Construction is
// an explicit step run once by each command; nothing initialises at import.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"agentx/internal/assistant"
	"agentx/internal/chunker"
	"agentx/internal/config"
	"agentx/internal/conversation"
	"agentx/internal/domain"
	"agentx/internal/embedding"
	"agentx/internal/embedding/openai"
	"agentx/internal/embedding/tfidf"
	"agentx/internal/extractor"
	"agentx/internal/index"
	"agentx/internal/metrics"
	"agentx/internal/runtime"
	"agentx/internal/runtime/ollama"
	rtopenai "agentx/internal/runtime/openai"
	"agentx/internal/server"
	"agentx/internal/service"
	"agentx/internal/summarizer"
)

// App holds the wired components.
type App struct {
	Config       *config.AppConfig
	Logger       *zap.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Index        *index.Manager
	Ingest       *service.Service
	Runtime      runtime.Runtime
	Conversation *conversation.Log
	Assistant    *assistant.Assistant
}

// New builds every component from cfg.
func New(cfg *config.AppConfig, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if env := cfg.Extractor.LicenseKeyEnv; env != "" {
		if key := os.Getenv(env); key != "" {
			if err := extractor.SetLicenseKey(key); err != nil {
				return nil, fmt.Errorf("pdf license: %w", err)
			}
		}
	}

	name, factory, err := embedderFactory(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	ch, err := newChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	sum, err := newSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}
	rt, err := newRuntime(cfg.Runtime)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	idx := index.NewManager(cfg.Paths.Index, name, factory, log)
	ingest := service.New(
		[]string{cfg.Paths.Evidence, cfg.Paths.Uploads},
		extractor.New(),
		ch,
		idx,
		service.Options{Summarizer: sum, SummaryMaxSentences: cfg.Summarizer.MaxSentences, Metrics: m, Logger: log},
	)
	conv := conversation.NewLog(cfg.Paths.Conversations)
	chat := assistant.New(ingest, rt, conv, assistant.Options{
		TopK:          cfg.Retrieval.TopK,
		SourcesFooter: cfg.Retrieval.SourcesFooter,
		Metrics:       m,
		Logger:        log,
	})

	log.Info("components ready",
		zap.String("embedder", name),
		zap.String("chunker", cfg.Chunker.Type),
		zap.String("runtime", cfg.Runtime.Type),
		zap.String("model", rt.Model()),
		zap.String("evidence", cfg.Paths.Evidence),
		zap.String("index", cfg.Paths.Index),
	)
	return &App{
		Config:       cfg,
		Logger:       log,
		Registry:     reg,
		Metrics:      m,
		Index:        idx,
		Ingest:       ingest,
		Runtime:      rt,
		Conversation: conv,
		Assistant:    chat,
	}, nil
}

// Server builds the HTTP surface over the app's components.
func (a *App) Server() *server.Server {
	cfg := a.Config
	return server.New(server.Config{
		Addr:            cfg.Server.Addr,
		UploadDir:       cfg.Paths.Uploads,
		MaxUploadBytes:  cfg.Upload.MaxBytes,
		Extensions:      cfg.Upload.Extensions,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second,
	}, a.Ingest, a.Assistant, a.Runtime, a.Registry, a.Metrics, a.Logger)
}

// Close flushes the logger. Conversations are persisted after every exchange.
func (a *App) Close() {
	_ = a.Logger.Sync()
}

func embedderFactory(cfg config.EmbedderConfig) (string, embedding.Factory, error) {
	switch cfg.Type {
	case tfidf.Name, "":
		return tfidf.Name, func() (embedding.Embedder, error) { return tfidf.NewEmbedder(), nil }, nil
	case openai.Name:
		if cfg.OpenAI == nil {
			return "", nil, fmt.Errorf("openai embedder config missing")
		}
		oc := openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		}
		// Fail at startup rather than on the first rebuild.
		if _, err := openai.NewClient(oc); err != nil {
			return "", nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return openai.Name, func() (embedding.Embedder, error) { return openai.NewClient(oc) }, nil
	default:
		return "", nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "window", "":
		return chunker.NewWindowChunker(cfg.Size, cfg.Overlap), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func newSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.New(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Type)
	}
}

func newRuntime(cfg config.RuntimeConfig) (runtime.Runtime, error) {
	switch cfg.Type {
	case "http", "":
		return rtopenai.New(rtopenai.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout(),
		}), nil
	case "cli":
		return ollama.NewCLI(ollama.Config{
			Binary:  cfg.Binary,
			Host:    cfg.Host,
			Model:   cfg.Model,
			Timeout: cfg.Timeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown runtime: %s", cfg.Type)
	}
}
