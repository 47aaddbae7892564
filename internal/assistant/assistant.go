// Package assistant answers user messages: retrieve context, assemble the
// prompt, call the runtime, record the exchange.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"agentx/internal/conversation"
	"agentx/internal/domain"
	"agentx/internal/index"
	"agentx/internal/metrics"
	"agentx/internal/runtime"
)

// ErrEmptyMessage rejects blank user input.
var ErrEmptyMessage = errors.New("empty message")

// DefaultTopK is the number of chunks spliced into a prompt.
const DefaultTopK = 3

// Generator is the subset of runtime.Runtime the assistant needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reply is the outcome of one Ask.
type Reply struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources"`
	Failed    bool      `json:"-"`
}

// Options configure an Assistant.
type Options struct {
	TopK          int
	SourcesFooter bool
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// Assistant is the query orchestrator shared by the HTTP and terminal front-ends.
type Assistant struct {
	retriever domain.Retriever
	runtime   Generator
	log       *conversation.Log
	topK      int
	footer    bool
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func New(retriever domain.Retriever, rt Generator, log *conversation.Log, opts Options) *Assistant {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Assistant{
		retriever: retriever,
		runtime:   rt,
		log:       log,
		topK:      opts.TopK,
		footer:    opts.SourcesFooter,
		metrics:   opts.Metrics,
		logger:    opts.Logger.Named("assistant"),
	}
}

// Ask answers message. Only blank input returns an error; runtime failures
// come back as a Reply whose Response describes the failure.
func (a *Assistant) Ask(ctx context.Context, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	asked := a.log.Now()

	results := a.retrieve(ctx, message)
	prompt := BuildPrompt(message, results)

	// The runtime call is bounded by its own timeout and is not abandoned
	// when the caller goes away.
	start := time.Now()
	answer, err := a.runtime.Generate(context.WithoutCancel(ctx), prompt)
	a.metrics.RuntimeCall(time.Since(start).Seconds())

	reply := Reply{}
	if err != nil {
		kind := runtime.KindOf(err)
		a.logger.Warn("runtime call failed", zap.String("kind", kind.String()), zap.Error(err))
		a.metrics.Query(kind.String())
		reply.Response = failureMessage(err)
		reply.Failed = true
	} else {
		a.metrics.Query("ok")
		reply.Response = answer
		if names := SourceNames(results); len(names) > 0 {
			reply.Sources = names
			if a.footer {
				reply.Response += sourcesFooter(names)
			}
		}
	}
	reply.Timestamp = a.log.Now()

	a.log.Append(
		domain.Turn{Role: domain.RoleUser, Content: message, Timestamp: asked},
		domain.Turn{Role: domain.RoleAssistant, Content: reply.Response, Timestamp: reply.Timestamp},
	)
	if _, err := a.log.Save(); err != nil {
		a.logger.Error("saving conversation", zap.Error(err))
	}
	return reply, nil
}

// History returns the current conversation.
func (a *Assistant) History() []domain.Turn { return a.log.Turns() }

// Exchanges counts completed user/assistant pairs.
func (a *Assistant) Exchanges() int { return a.log.Len() / 2 }

// Reset flushes the conversation to disk and clears it.
func (a *Assistant) Reset() error {
	_, err := a.log.Reset()
	return err
}

func (a *Assistant) retrieve(ctx context.Context, query string) []domain.SearchResult {
	if a.retriever == nil {
		return nil
	}
	results, err := a.retriever.Search(ctx, query, a.topK)
	switch {
	case errors.Is(err, index.ErrUnavailable):
		a.logger.Debug("retrieval unavailable", zap.Error(err))
		a.metrics.Retrieval("unavailable")
		return nil
	case err != nil:
		a.logger.Error("retrieval failed", zap.Error(err))
		a.metrics.Retrieval("error")
		return nil
	case len(results) == 0:
		a.metrics.Retrieval("miss")
	default:
		a.metrics.Retrieval("hit")
	}
	return results
}

func failureMessage(err error) string {
	var rerr *runtime.Error
	if errors.As(err, &rerr) {
		return rerr.Error()
	}
	return "Error: " + err.Error()
}
