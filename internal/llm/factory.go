package llm

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// NewProvider creates the configured provider. Supported types are
// "anthropic" and "openai".
func NewProvider(providerType, apiKey, model, baseURL string) (Provider, error) {
	switch providerType {
	case "anthropic", "":
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		log.Info().Str("provider", "anthropic").Str("model", model).Msg("LLM provider configured")
		return NewAnthropicProvider(apiKey, model, baseURL), nil
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		log.Info().Str("provider", "openai").Str("model", model).Msg("LLM provider configured")
		return NewOpenAIProvider(apiKey, model, baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
