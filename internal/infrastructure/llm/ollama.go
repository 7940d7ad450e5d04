package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
)

// OllamaModel completes conversations using a local Ollama server
type OllamaModel struct {
	endpoint    string
	model       string
	temperature float64
	client      *http.Client
	logger      zerolog.Logger
}

// NewOllamaModel creates a new Ollama chat backend
func NewOllamaModel(cfg Config, logger zerolog.Logger) *OllamaModel {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "qwen3:8b"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaModel{
		endpoint:    endpoint,
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With().Str("component", "ollama").Str("model", model).Logger(),
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// Complete sends the system prompt and conversation and returns the reply text
func (m *OllamaModel) Complete(ctx context.Context, system string, messages []domain.ChatMessage) (string, error) {
	req := ollamaChatRequest{
		Model:    m.model,
		Messages: make([]ollamaMessage, 0, len(messages)+1),
		Stream:   false,
		Format:   "json",
		Options:  map[string]any{"temperature": m.temperature},
	}
	if system != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: "system", Content: system})
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, ollamaMessage{Role: msg.Role, Content: msg.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: ollama request failed: %v", domain.ErrModelFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: ollama returned status %d: %s", domain.ErrModelFailure, resp.StatusCode, string(bodyBytes))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", domain.ErrModelFailure, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrModelFailure, result.Error)
	}

	m.logger.Debug().Dur("elapsed", time.Since(start)).Int("chars", len(result.Message.Content)).Msg("completion finished")
	return result.Message.Content, nil
}

// Name returns the backend name
func (m *OllamaModel) Name() string {
	return fmt.Sprintf("ollama:%s", m.model)
}
