package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/generator/openai"
	"github.com/sakif/excuse-me/internal/model"
)

var testRequest = model.ExcuseRequest{
	Situation:    "Cancel meeting",
	Tone:         "Professional",
	TargetPerson: "Boss",
	UrgencyLevel: "Medium",
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
}

func newGenerator(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *openai.Generator {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/v1"
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	gen, err := openai.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return gen
}

func TestGenerate_Success(t *testing.T) {
	var gotPrompt string
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 1)
		gotPrompt = body.Messages[0].Content

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("  My train was cancelled. I will reschedule.  \n"))
	}, 0)

	text, err := gen.Generate(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "My train was cancelled. I will reschedule.", text)
	assert.Contains(t, gotPrompt, "Situation: Cancel meeting")
	assert.Contains(t, gotPrompt, "Tone: Professional")
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "provider error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			},
		},
		{
			name: "whitespace-only output",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(completion("   \n\t"))
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newGenerator(t, tt.handler, 0)

			text, err := gen.Generate(context.Background(), testRequest)
			assert.Empty(t, text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrGeneration), "want ErrGeneration, got %v", err)
			assert.Equal(t, apperror.KindGeneration, apperror.KindOf(err))
		})
	}
}

// The stalled handler is released before the server closes; a handler that
// never reads the body is not cancelled by a client disconnect.
func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	t.Cleanup(func() { close(release) })

	start := time.Now()
	text, err := gen.Generate(context.Background(), testRequest)

	assert.Empty(t, text)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrGeneration), "want ErrGeneration, got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := openai.New(openai.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
