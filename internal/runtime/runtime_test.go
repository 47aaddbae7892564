package runtime

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestError_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"not running", &Error{Kind: NotRunning, Runtime: "Ollama"}, "Error: Ollama server is not running. Please start it with: ollama serve"},
		{"timeout", &Error{Kind: Timeout, Timeout: 60 * time.Second}, "Error: AI response timed out (60 seconds). Try a shorter query."},
		{"not found", &Error{Kind: NotFound, Runtime: "Ollama", Target: "/opt/bin/ollama"}, "Error: Ollama not found at /opt/bin/ollama. Please check installation."},
		{"failed", &Error{Kind: Failed, Err: errors.New("model crashed")}, "Error: model crashed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", &Error{Kind: Timeout})
	assert.Equal(t, Timeout, KindOf(wrapped))
	assert.Equal(t, Failed, KindOf(errors.New("plain")))
	assert.Equal(t, "timeout", Timeout.String())
}
