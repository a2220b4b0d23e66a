package config

import (
	"time"

	"prospector/pkg/config"
)

// Config stores environment configuration for Prospector.
type Config struct {
	Port        string
	DatabaseURL string

	LLMProvider  string
	LLMModel     string
	LLMAPIKey    string
	LLMAPIURL    string
	LLMMaxTokens int

	UtilityLLMProvider string
	UtilityLLMModel    string
	UtilityLLMAPIKey   string
	UtilityLLMAPIURL   string

	SearchProvider string
	SearchAPIKey   string
	SearchAPIURL   string

	WikipediaAPIURL string

	BatchSize       int
	AcceptThreshold int
	RetryAttempts   int
	RetryDelay      time.Duration
	SummaryDeadline time.Duration

	UsageReportInterval time.Duration
}

// LoadConfig loads the Prospector configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:        config.GetEnv("PORT", "18020"),
		DatabaseURL: config.RequireEnv("DATABASE_URL"),

		LLMProvider:  config.GetEnv("LLM_PROVIDER", ""),
		LLMModel:     config.GetEnv("LLM_MODEL", ""),
		LLMAPIKey:    config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:    config.GetEnv("LLM_API_URL", ""),
		LLMMaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 4096),

		UtilityLLMProvider: config.GetEnv("UTILITY_LLM_PROVIDER", config.GetEnv("LLM_PROVIDER", "")),
		UtilityLLMModel:    config.GetEnv("UTILITY_LLM_MODEL", config.GetEnv("LLM_MODEL", "")),
		UtilityLLMAPIKey:   config.GetEnv("UTILITY_LLM_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		UtilityLLMAPIURL:   config.GetEnv("UTILITY_LLM_API_URL", config.GetEnv("LLM_API_URL", "")),

		SearchProvider: config.GetEnv("SEARCH_PROVIDER", ""),
		SearchAPIKey:   config.GetEnv("SEARCH_API_KEY", ""),
		SearchAPIURL:   config.GetEnv("SEARCH_API_URL", ""),

		WikipediaAPIURL: config.GetEnv("WIKIPEDIA_API_URL", ""),

		BatchSize:       config.GetEnvInt("PROSPECTOR_BATCH_SIZE", 10),
		AcceptThreshold: config.GetEnvInt("PROSPECTOR_ACCEPT_THRESHOLD", 50),
		RetryAttempts:   config.GetEnvInt("PROSPECTOR_RETRY_ATTEMPTS", 1),
		RetryDelay:      parseDuration(config.GetEnv("PROSPECTOR_RETRY_DELAY", "250ms"), 250*time.Millisecond),
		SummaryDeadline: parseDuration(config.GetEnv("PROSPECTOR_SUMMARY_DEADLINE", "20s"), 20*time.Second),

		UsageReportInterval: parseDuration(config.GetEnv("PROSPECTOR_USAGE_REPORT_INTERVAL", "5m"), 5*time.Minute),
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
