package embeddings_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/embeddings"
)

func TestNewEmbedderDefaults(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOllama,
			Model:     "nomic-embed-text",
			Dimension: 3,
		},
		OllamaHost: "http://localhost:11434",
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}

func TestNewEmbedderOpenAIMissingKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
	}

	_, err := embeddings.NewEmbedder(cfg)
	assert.Error(t, err)
}

func TestOllamaEmbedderChecksDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.1, 0.2}})
	}))
	defer srv.Close()

	ok := embeddings.NewOllamaEmbedder(embeddings.Options{OllamaHost: srv.URL, Model: "m", Dimension: 2})
	vectors, err := ok.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.2, vectors[1][1], 0.0001)

	mismatched := embeddings.NewOllamaEmbedder(embeddings.Options{OllamaHost: srv.URL, Model: "m", Dimension: 3})
	_, err = mismatched.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer srv.Close()

	embedder := embeddings.NewOpenAIEmbedder(embeddings.Options{OpenAIAPIKey: "k", OpenAIBaseURL: srv.URL, Model: "text-embedding-3-small", Dimension: 2})
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

type countingEmbedder struct {
	calls [][]string
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, texts)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

func TestEmbedBatchedSplitsInput(t *testing.T) {
	embedder := &countingEmbedder{}
	vectors, err := embeddings.EmbedBatched(context.Background(), embedder, []string{"a", "bb", "ccc", "dddd", "eeeee"}, 2)
	require.NoError(t, err)

	assert.Len(t, embedder.calls, 3)
	assert.Equal(t, [][]float32{{1}, {2}, {3}, {4}, {5}}, vectors)
}

func TestEmbedBatchedPropagatesErrors(t *testing.T) {
	embedder := &countingEmbedder{err: errors.New("rate limited")}
	_, err := embeddings.EmbedBatched(context.Background(), embedder, []string{"a", "b", "c"}, 1)
	assert.ErrorContains(t, err, "rate limited")
}
