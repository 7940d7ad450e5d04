package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// GeminiModel completes conversations using the Gemini API
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      zerolog.Logger
}

// NewGeminiModel creates a Gemini chat backend
func NewGeminiModel(ctx context.Context, cfg Config, logger zerolog.Logger) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiModel{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		logger:      logger.With().Str("component", "gemini").Str("model", model).Logger(),
	}, nil
}

// Complete sends the system prompt and conversation and returns the reply text
func (m *GeminiModel) Complete(ctx context.Context, system string, messages []domain.ChatMessage) (string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(m.temperature),
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	start := time.Now()
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: gemini request failed: %v", domain.ErrModelFailure, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned no text", domain.ErrModelFailure)
	}

	m.logger.Debug().Dur("elapsed", time.Since(start)).Int("chars", len(text)).Msg("completion finished")
	return text, nil
}

// Name returns the backend name
func (m *GeminiModel) Name() string {
	return fmt.Sprintf("gemini:%s", m.model)
}
