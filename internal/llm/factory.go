package llm

import (
	"codewiki/internal/config"
	"codewiki/internal/wikierr"
)

// NewChatClient builds the chat client for a provider tag. Providers not
// listed explicitly are assumed to be OpenAI-compatible gateways.
func NewChatClient(provider string, cfg config.ProviderConfig, language string) (ChatClient, error) {
	if cfg.ModelName == "" {
		return nil, wikierr.New(wikierr.KindConfig, "no model_name configured for provider %s", provider)
	}
	switch provider {
	case "anthropic":
		return NewAnthropicClient(cfg, language), nil
	case "azure":
		if cfg.BaseURL == "" {
			return nil, wikierr.New(wikierr.KindConfig, "azure provider requires base_url")
		}
		return NewAzureClient(cfg, language), nil
	default:
		return NewOpenAIClient(provider, cfg, language), nil
	}
}

// FromConfig builds the chat client for the active provider.
func FromConfig(cfg *config.Config) (ChatClient, error) {
	provider, pc, err := cfg.ActiveProvider()
	if err != nil {
		return nil, err
	}
	return NewChatClient(provider, pc, cfg.Language)
}
