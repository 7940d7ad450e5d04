// Package llm provides the language model backends used by the scoring agent.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
)

// Supported providers
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Config selects and configures a backend
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
}

// New builds the configured backend
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (domain.LanguageModel, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		return NewOllamaModel(cfg, logger), nil
	case ProviderGemini:
		return NewGeminiModel(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
