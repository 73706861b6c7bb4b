package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/config"
)

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(config.EmbeddingConfig{Provider: "carrier-pigeon"}, "k")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewEmbedder_OpenAICompatible(t *testing.T) {
	var gotPath, gotModel, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"text-embedding-004"}`))
	}))
	defer srv.Close()

	embedder, err := NewEmbedder(config.EmbeddingConfig{
		Provider: config.ProviderGemini,
		BaseURL:  srv.URL + "/v1beta/openai/",
		Model:    "text-embedding-004",
	}, "secret")
	require.NoError(t, err)

	vec, err := embedder.EmbedQuery(context.Background(), "hola")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "/v1beta/openai/embeddings", gotPath)
	assert.Equal(t, "text-embedding-004", gotModel)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestNewEmbedder_Ollama(t *testing.T) {
	embedder, err := NewEmbedder(config.EmbeddingConfig{
		Provider: config.ProviderOllama,
		BaseURL:  "http://localhost:11434",
		Model:    "nomic-embed-text",
	}, "")
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}
