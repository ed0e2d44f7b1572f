package analysis

import (
	"fmt"
	"log/slog"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/analysis/providers/anthropic"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/analysis/providers/gemini"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/analysis/providers/openai"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// ProvidersFromConfig builds the ordered provider chain from the model
// registry. Registry order is fallback order: the first entry is the
// primary provider.
func ProvidersFromConfig(cfg config.ModelsConfig) ([]Provider, error) {
	var providers []Provider

	for _, entry := range cfg.Registry {
		provider, err := createProvider(entry)
		if err != nil {
			slog.Warn("Skipping analysis provider", "provider", entry.Provider, "model", entry.Name, "error", err)
			continue
		}
		providers = append(providers, provider)
		slog.Info("Analysis provider registered", "name", entry.Name, "type", entry.Provider)
	}

	if len(providers) == 0 {
		return nil, errors.Internal("no analysis providers configured")
	}
	return providers, nil
}

func createProvider(entry config.ModelRegistry) (Provider, error) {
	switch entry.Provider {
	case "openai":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOpenAIBaseURL
		}
		if entry.APIKey == "" {
			return nil, errors.InvalidInput("API key required for OpenAI provider")
		}
		return openai.New(entry.APIKey, baseURL, entry.Name), nil

	case "anthropic":
		if entry.APIKey == "" {
			return nil, errors.InvalidInput("API key required for Anthropic provider")
		}
		return anthropic.New(entry.APIKey, entry.Name), nil

	case "gemini":
		if entry.APIKey == "" {
			return nil, errors.InvalidInput("API key required for Gemini provider")
		}
		provider, err := gemini.New(entry.APIKey, entry.Name)
		if err != nil {
			return nil, errors.Wrap(err, "create Gemini provider")
		}
		return provider, nil

	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unknown provider type: %s", entry.Provider))
	}
}
