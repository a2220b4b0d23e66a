package llm

import (
	"fmt"
	"strings"

	"prospector/pkg/config"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

func LoadConfig() Config {
	return Config{
		Provider: config.GetEnv("LLM_PROVIDER", "openai"),
		Model:    config.GetEnv("LLM_MODEL", ""),
		APIKey:   config.GetEnv("LLM_API_KEY", ""),
		APIURL:   config.GetEnv("LLM_API_URL", ""),
	}
}

// LoadUtilityConfig loads utility-model configuration from UTILITY_LLM_*
// env vars, falling back to their LLM_* counterparts when unset. The utility
// model handles cheap high-volume calls (triage, summarization) while the
// primary model handles synthesis.
func LoadUtilityConfig() Config {
	return Config{
		Provider: config.GetEnv("UTILITY_LLM_PROVIDER", config.GetEnv("LLM_PROVIDER", "openai")),
		Model:    config.GetEnv("UTILITY_LLM_MODEL", config.GetEnv("LLM_MODEL", "")),
		APIKey:   config.GetEnv("UTILITY_LLM_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		APIURL:   config.GetEnv("UTILITY_LLM_API_URL", config.GetEnv("LLM_API_URL", "")),
	}
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
