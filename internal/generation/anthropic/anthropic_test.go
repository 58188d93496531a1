package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func messagesServer(t *testing.T, status int, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
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
	srv := messagesServer(t, http.StatusOK, map[string]any{
		"id":    "msg_1",
		"type":  "message",
		"role":  "assistant",
		"model": DefaultModel,
		"content": []map[string]any{
			{"type": "text", "text": "It swam "},
			{"type": "text", "text": "north."},
		},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 4},
	})
	t.Setenv("RAGCHAT_TEST_KEY", "sk-ant-test")
	g, err := New(Config{APIKeyEnv: "RAGCHAT_TEST_KEY", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "anthropic:"+DefaultModel, g.Name())

	out, err := g.Generate(context.Background(), "Where did the whale swim?")
	require.NoError(t, err)
	assert.Equal(t, "It swam north.", out)
}

func TestGenerate_ServiceError(t *testing.T) {
	srv := messagesServer(t, http.StatusBadRequest, map[string]any{
		"type":  "error",
		"error": map[string]any{"type": "invalid_request_error", "message": "bad"},
	})
	t.Setenv("RAGCHAT_TEST_KEY", "sk-ant-test")
	g, err := New(Config{APIKeyEnv: "RAGCHAT_TEST_KEY", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrGenerationService)
}
