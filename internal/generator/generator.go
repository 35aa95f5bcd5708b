package generator

import (
	"context"
	"fmt"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/pipeline"
)

// Provider is a pipeline.Generator that holds client resources.
type Provider interface {
	pipeline.Generator
	Close() error
}

var (
	_ Provider = (*Gemini)(nil)
	_ Provider = (*OpenAI)(nil)
	_ Provider = (*Local)(nil)
)

// New builds the provider selected in cfg.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	logger.Info("using generation provider", logger.String("provider", cfg.Provider))
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGemini(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			ScriptModel: cfg.ScriptModel,
			ImageModel:  cfg.ImageModel,
			SpeechModel: cfg.SpeechModel,
		})
	case config.ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			ScriptModel: cfg.ScriptModel,
			ImageModel:  cfg.ImageModel,
			SpeechModel: cfg.SpeechModel,
		})
	case config.ProviderLocal:
		return NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
