package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-chat-api/internal/config"
)

func vector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = 0.5
	}
	return v
}

func TestEmbed_SingleBatchedCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Texts []string `json:"texts"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"one", "two", "three"}, req.Texts)
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := map[string][][]float32{"embeddings": {vector(8), vector(8), vector(8)}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, APIKey: "secret", Dimension: 8})

	vectors, err := c.Embed(context.Background(), []string{"one", "two", "three"})

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	// 整批文本走单次调用
	assert.Equal(t, 1, calls)
}

func TestEmbed_EmptyInputNoCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected for empty input")
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL})

	vectors, err := c.Embed(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string][][]float32{"embeddings": {vector(4)}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, Dimension: 768})

	_, err := c.Embed(context.Background(), []string{"text"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestEmbed_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL})

	_, err := c.Embed(context.Background(), []string{"text"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(&config.EmbeddingConfig{Endpoint: "https://embed.example.com"})

	assert.Equal(t, 768, c.Dimension())
}

func TestEmbed_CustomPathPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		resp := map[string][][]float32{"embeddings": {vector(768)}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL + "/v1/embeddings"})

	_, err := c.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
}
