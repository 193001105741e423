package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoria/pkg/llm"
)

const testAPIKey = "test-key"

func newTestProvider(baseURL string) *Provider {
	return NewProviderWithConfig(&Config{
		BaseURL: baseURL,
		APIKey:  testAPIKey,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	p, err := NewProvider(map[string]any{"api_key": testAPIKey, "model": "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.Model())
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"json_object"`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"ok\":true}"}}]
		}`))
	}))
	defer srv.Close()

	out, err := newTestProvider(srv.URL).Generate(context.Background(), "hi", llm.GenerateOptions{
		Temperature: 0.3, MaxTokens: 100, JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestGenerate_StatusIsPreserved(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Generate(context.Background(), "hi", llm.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, 429, llm.StatusCode(err))
	// SDK retries are disabled
	assert.Equal(t, 1, calls)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Generate(context.Background(), "hi", llm.GenerateOptions{})
	assert.ErrorIs(t, err, llm.ErrEmptyContent)
}
