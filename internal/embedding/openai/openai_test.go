package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Embed(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,0]}],"model":"nomic-embed-text"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())

	vec, err := c.Embed(context.Background(), "receipt")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, 0}, vec)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "nomic-embed-text", gotModel)
}

func TestClient_EmptyText(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "  ")
	assert.Error(t, err)
}

func TestNewClient_RequiresKeyForHostedAPI(t *testing.T) {
	t.Setenv("AGENTX_TEST_EMBED_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "AGENTX_TEST_EMBED_KEY"})
	assert.Error(t, err)
}
