// Package server exposes the assistant and ingestion over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"agentx/internal/assistant"
	"agentx/internal/domain"
	"agentx/internal/index"
	"agentx/internal/metrics"
	"agentx/internal/service"
)

// Ingester is the ingestion side used by upload, documents and status.
type Ingester interface {
	Ingest(ctx context.Context) (service.IngestReport, error)
	Documents() []domain.Document
	Available(ctx context.Context) bool
	Stats(ctx context.Context) index.Stats
}

// Chat is the conversation side used by query, clear and history.
type Chat interface {
	Ask(ctx context.Context, message string) (assistant.Reply, error)
	History() []domain.Turn
	Exchanges() int
	Reset() error
}

// Prober reports on the language-model runtime.
type Prober interface {
	Name() string
	Model() string
	Ping(ctx context.Context) error
}

// Locator is implemented by runtimes that execute a local binary.
type Locator interface {
	Binary() (string, error)
}

// Config holds listener and upload settings.
type Config struct {
	Addr            string
	UploadDir       string
	MaxUploadBytes  int64
	Extensions      []string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server wires handlers onto an echo instance.
type Server struct {
	cfg      Config
	allowed  map[string]struct{}
	ingester Ingester
	chat     Chat
	runtime  Prober
	metrics  *metrics.Metrics
	log      *zap.Logger
	echo     *echo.Echo
}

// New builds the HTTP surface. gatherer serves /metrics and may be nil.
func New(cfg Config, ing Ingester, chat Chat, rt Prober, gatherer prometheus.Gatherer, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		allowed:  make(map[string]struct{}, len(cfg.Extensions)),
		ingester: ing,
		chat:     chat,
		runtime:  rt,
		metrics:  m,
		log:      log.Named("http"),
		echo:     echo.New(),
	}
	for _, ext := range cfg.Extensions {
		s.allowed[ext] = struct{}{}
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			s.log.Info("request", fields...)
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.POST("/query", s.query)
	api.POST("/clear", s.clear)
	api.GET("/history", s.history)
	api.GET("/status", s.status)
	api.POST("/upload", s.upload)
	api.GET("/documents", s.documents)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.echo,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- s.echo.StartServer(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.log.Info("shutting down")
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	if code >= http.StatusInternalServerError {
		req := c.Request()
		s.log.Error("request failed",
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
	}
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}
