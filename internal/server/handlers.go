package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agentx/internal/assistant"
	"agentx/internal/domain"
)

const pingTimeout = 2 * time.Second

type queryRequest struct {
	Message string `json:"message"`
}

type queryResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources"`
}

type statusResponse struct {
	RuntimeRunning     bool   `json:"runtime_running"`
	Runtime            string `json:"runtime"`
	Model              string `json:"model"`
	RetrievalAvailable bool   `json:"retrieval_available"`
	DocumentCount      int    `json:"document_count"`
	ChunkCount         int    `json:"chunk_count"`
	ConversationCount  int    `json:"conversation_count"`
	RuntimeExists      *bool  `json:"runtime_exists,omitempty"`
	RuntimePath        string `json:"runtime_path,omitempty"`
}

func (s *Server) query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	reply, err := s.chat.Ask(c.Request().Context(), req.Message)
	if errors.Is(err, assistant.ErrEmptyMessage) {
		s.metrics.Query("rejected")
		return echo.NewHTTPError(http.StatusBadRequest, "Empty message")
	}
	if err != nil {
		return err
	}
	sources := reply.Sources
	if sources == nil {
		sources = []string{}
	}
	return c.JSON(http.StatusOK, queryResponse{Response: reply.Response, Timestamp: reply.Timestamp, Sources: sources})
}

func (s *Server) clear(c echo.Context) error {
	if err := s.chat.Reset(); err != nil {
		s.log.Error("saving conversation before clear", zap.Error(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) history(c echo.Context) error {
	messages := s.chat.History()
	if messages == nil {
		messages = []domain.Turn{}
	}
	return c.JSON(http.StatusOK, map[string][]domain.Turn{"messages": messages})
}

func (s *Server) status(c echo.Context) error {
	ctx := c.Request().Context()
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	running := s.runtime.Ping(pingCtx) == nil

	stats := s.ingester.Stats(ctx)
	resp := statusResponse{
		RuntimeRunning:     running,
		Runtime:            s.runtime.Name(),
		Model:              s.runtime.Model(),
		RetrievalAvailable: s.ingester.Available(ctx),
		DocumentCount:      stats.Documents,
		ChunkCount:         stats.Chunks,
		ConversationCount:  s.chat.Exchanges(),
	}
	if loc, ok := s.runtime.(Locator); ok {
		path, err := loc.Binary()
		exists := err == nil
		resp.RuntimeExists = &exists
		resp.RuntimePath = path
	}
	return c.JSON(http.StatusOK, resp)
}
