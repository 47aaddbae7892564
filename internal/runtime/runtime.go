// Package runtime defines the language-model runtime the assistant forwards prompts to.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Runtime generates a reply for a prompt.
type Runtime interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
	Ping(ctx context.Context) error
}

// Kind classifies runtime failures.
type Kind int

const (
	Failed Kind = iota
	NotRunning
	Timeout
	NotFound
)

func (k Kind) String() string {
	switch k {
	case NotRunning:
		return "not_running"
	case Timeout:
		return "timeout"
	case NotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Error is a classified runtime failure. Its message is shown to users as-is.
type Error struct {
	Kind    Kind
	Runtime string
	Target  string
	Timeout time.Duration
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case NotRunning:
		return fmt.Sprintf("Error: %s server is not running. Please start it with: ollama serve", e.Runtime)
	case Timeout:
		return fmt.Sprintf("Error: AI response timed out (%d seconds). Try a shorter query.", int(e.Timeout.Seconds()))
	case NotFound:
		return fmt.Sprintf("Error: %s not found at %s. Please check installation.", e.Runtime, e.Target)
	default:
		if e.Err != nil {
			return "Error: " + e.Err.Error()
		}
		return "Error: unknown runtime failure"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or Failed for unclassified errors.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return Failed
}
