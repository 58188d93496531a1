package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func chatServer(t *testing.T, status int, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("RAGCHAT_TEST_EMPTY_KEY", "")
	_, err := New(Config{APIKeyEnv: "RAGCHAT_TEST_EMPTY_KEY"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestGenerate(t *testing.T) {
	srv := chatServer(t, http.StatusOK, map[string]any{
		"id":     "c1",
		"object": "chat.completion",
		"choices": []map[string]any{
			{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": " It swam north. "}},
		},
	})
	t.Setenv("RAGCHAT_TEST_KEY", "sk-test")
	g, err := New(Config{BaseURL: srv.URL, APIKeyEnv: "RAGCHAT_TEST_KEY", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o-mini", g.Name())

	out, err := g.Generate(context.Background(), "Where did the whale swim?")
	require.NoError(t, err)
	assert.Equal(t, "It swam north.", out)
}

func TestGenerate_ServiceError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"message": "slow down", "type": "rate_limit"},
	})
	t.Setenv("RAGCHAT_TEST_KEY", "sk-test")
	g, err := New(Config{BaseURL: srv.URL, APIKeyEnv: "RAGCHAT_TEST_KEY"})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "q")
	require.ErrorIs(t, err, domain.ErrGenerationService)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := chatServer(t, http.StatusOK, map[string]any{"id": "c1", "choices": []any{}})
	t.Setenv("RAGCHAT_TEST_KEY", "sk-test")
	g, err := New(Config{BaseURL: srv.URL, APIKeyEnv: "RAGCHAT_TEST_KEY"})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrGenerationService)
}
