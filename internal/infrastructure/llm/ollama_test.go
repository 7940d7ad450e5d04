package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaModel_Complete(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"action\":\"final\"}"},"done":true}`))
	}))
	defer server.Close()

	model := NewOllamaModel(Config{BaseURL: server.URL, Model: "qwen3:8b", Temperature: 0.2}, zerolog.Nop())

	reply, err := model.Complete(context.Background(), "you are a nutritionist", []domain.ChatMessage{
		{Role: "user", Content: "score this"},
		{Role: "assistant", Content: "need more data"},
		{Role: "user", Content: "here it is"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"final"}`, reply)

	assert.Equal(t, "qwen3:8b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "json", got.Format)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "you are a nutritionist", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.InDelta(t, 0.2, got.Options["temperature"], 0.0001)
}

func TestOllamaModel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
		{
			name: "error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":"model \"missing\" not found"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			model := NewOllamaModel(Config{BaseURL: server.URL}, zerolog.Nop())
			_, err := model.Complete(context.Background(), "", []domain.ChatMessage{{Role: "user", Content: "hi"}})
			assert.ErrorIs(t, err, domain.ErrModelFailure)
		})
	}
}

func TestOllamaModel_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	model := NewOllamaModel(Config{BaseURL: server.URL}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := model.Complete(ctx, "", []domain.ChatMessage{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, domain.ErrModelFailure)
}

func TestNewOllamaModel_Defaults(t *testing.T) {
	model := NewOllamaModel(Config{}, zerolog.Nop())

	assert.Equal(t, "http://localhost:11434", model.endpoint)
	assert.Equal(t, "qwen3:8b", model.model)
	assert.Equal(t, 60*time.Second, model.client.Timeout)
	assert.Equal(t, "ollama:qwen3:8b", model.Name())
}

func TestNew(t *testing.T) {
	t.Run("defaults to ollama", func(t *testing.T) {
		model, err := New(context.Background(), Config{}, zerolog.Nop())
		require.NoError(t, err)
		assert.IsType(t, &OllamaModel{}, model)
	})

	t.Run("gemini requires api key", func(t *testing.T) {
		_, err := New(context.Background(), Config{Provider: ProviderGemini}, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(context.Background(), Config{Provider: "mystery"}, zerolog.Nop())
		assert.Error(t, err)
	})
}
