package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/llm"
)

func TestNewClientDefaults(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{
			Provider: config.ProviderOllama,
			Model:    "llama3.1:8b",
		},
		OllamaHost: "http://localhost:11434",
	}

	client, err := llm.NewClient(cfg)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClientOpenAIRequiresAPIKey(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{
			Provider: config.ProviderOpenAI,
			Model:    "gpt-4o-mini",
		},
	}

	_, err := llm.NewClient(cfg)
	assert.Error(t, err)
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := llm.NewClient(config.Config{LLM: config.LLMConfig{Provider: "gemini"}})
	assert.Error(t, err)
}

func TestOllamaClientSendsTemperature(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "grounded answer"},
			"done":    true,
		})
	}))
	defer srv.Close()

	client := llm.NewOllamaClient(llm.Options{OllamaHost: srv.URL, Model: "llama3.1:8b"})
	answer, err := client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.WithTemperature(0.3))
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", answer)

	options, ok := received["options"].(map[string]any)
	require.True(t, ok, "expected options in payload")
	assert.InDelta(t, 0.3, options["temperature"], 0.0001)
	assert.Equal(t, false, received["stream"])
}

func TestOllamaClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := llm.NewOllamaClient(llm.Options{OllamaHost: srv.URL, Model: "missing"})
	_, err := client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOpenAIClientUsesChatCompletions(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": "from openai"}, "finish_reason": "stop"}},
		})
	}))
	defer srv.Close()

	client := llm.NewOpenAIClient(llm.Options{OpenAIAPIKey: "test", OpenAIBaseURL: srv.URL, Model: "gpt-4o-mini"})
	answer, err := client.Generate(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hi"},
	}, llm.WithTemperature(0.3))
	require.NoError(t, err)
	assert.Equal(t, "from openai", answer)
	assert.Equal(t, "gpt-4o-mini", received["model"])
	assert.InDelta(t, 0.3, received["temperature"], 0.0001)

	messages, ok := received["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestApplyOptions(t *testing.T) {
	settings := llm.ApplyOptions(nil)
	assert.Nil(t, settings.Temperature)

	settings = llm.ApplyOptions([]llm.GenerateOption{llm.WithTemperature(0.7), llm.WithTemperature(0.3)})
	require.NotNil(t, settings.Temperature)
	assert.InDelta(t, 0.3, *settings.Temperature, 0.0001)
}
