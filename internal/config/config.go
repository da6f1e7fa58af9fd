// Package config reads the bridge settings from the environment. The bridge
// owns none of this state; it only consumes what the environment supplies.
package config

import (
	"errors"
	"os"
	"strconv"
)

const (
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 11434
	DefaultModelsFile = "models.json"
)

type Config struct {
	Host string
	Port int

	OpenAIKey     string
	OpenAIBaseURL string

	GeminiKey     string
	GeminiBaseURL string

	OpenRouterKey     string
	OpenRouterBaseURL string

	// ModelsFile is the optional model-table override, resolved relative to
	// the working directory.
	ModelsFile string
}

// FromEnv builds the configuration from environment variables, applying
// defaults for everything but credentials.
func FromEnv() *Config {
	cfg := &Config{
		Host:              envOr("HOST", DefaultHost),
		Port:              envInt("PORT", DefaultPort),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		GeminiKey:         envOr("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		GeminiBaseURL:     os.Getenv("GEMINI_BASE_URL"),
		OpenRouterKey:     os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: os.Getenv("OPENROUTER_BASE_URL"),
		ModelsFile:        envOr("MODELS_FILE", DefaultModelsFile),
	}

	return cfg
}

// Validate rejects a configuration that cannot serve any model at all.
func (c *Config) Validate() error {
	if c.OpenAIKey == "" && c.GeminiKey == "" && c.OpenRouterKey == "" {
		return errors.New("no provider credential configured; set OPENAI_API_KEY, GEMINI_API_KEY or OPENROUTER_API_KEY")
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}

	return n
}
