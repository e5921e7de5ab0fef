// Package config loads the process configuration from the environment, once,
// at startup. A .env file is honored when present so local development doesn't
// need exported shell variables. The loaded configuration is immutable for the
// process lifetime.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/paideia-ai/paideia/provider"
)

const (
	// ProviderOpenAI and ProviderAnthropic are the recognized backend kinds.
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-sonnet-latest"
	defaultMaxTokens      = 4096
	defaultNATSURL        = "nats://127.0.0.1:4222"
)

// Backend is the per-provider slice of the configuration.
type Backend struct {
	// Model is the backend model identifier.
	Model string
	// APIKey is the credential, read from the provider's key variable.
	APIKey string
	// APIKeyEnv names the variable the credential was read from.
	APIKeyEnv string
	// CostPerMillionInput and CostPerMillionOutput are USD rates per million tokens.
	CostPerMillionInput  float64
	CostPerMillionOutput float64
}

// Config is the full process configuration.
type Config struct {
	// Provider names the default backend, one of the recognized kinds.
	Provider string
	// FallbackProvider optionally names a second backend for retryable failures.
	FallbackProvider string
	// MaxOutputTokens is the default output bound for generation requests.
	MaxOutputTokens int
	// NATSURL is the broker endpoint for cross-process stream relay.
	NATSURL string

	OpenAI    Backend
	Anthropic Backend
}

// Load reads the configuration from the environment. A .env file in the
// working directory is merged in first; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Provider:         getenv("AI_PROVIDER", ProviderOpenAI),
		FallbackProvider: os.Getenv("AI_FALLBACK_PROVIDER"),
		NATSURL:          getenv("NATS_URL", defaultNATSURL),
		OpenAI: Backend{
			Model:     getenv("OPENAI_MODEL", defaultOpenAIModel),
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Anthropic: Backend{
			Model:     getenv("ANTHROPIC_MODEL", defaultAnthropicModel),
			APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
	}

	// a typo'd pricing override must fail loudly, silently falling back to the
	// default rate would misprice every call
	for _, rate := range []struct {
		key      string
		fallback float64
		dst      *float64
	}{
		{"OPENAI_COST_PER_MILLION_INPUT", 0.15, &cfg.OpenAI.CostPerMillionInput},
		{"OPENAI_COST_PER_MILLION_OUTPUT", 0.60, &cfg.OpenAI.CostPerMillionOutput},
		{"ANTHROPIC_COST_PER_MILLION_INPUT", 3.00, &cfg.Anthropic.CostPerMillionInput},
		{"ANTHROPIC_COST_PER_MILLION_OUTPUT", 15.00, &cfg.Anthropic.CostPerMillionOutput},
	} {
		f, err := getenvFloat(rate.key, rate.fallback)
		if err != nil {
			return nil, err
		}
		*rate.dst = f
	}

	maxTokens, err := getenvInt("AI_MAX_OUTPUT_TOKENS", defaultMaxTokens)
	if err != nil {
		return nil, err
	}
	cfg.MaxOutputTokens = maxTokens

	for _, name := range []string{cfg.Provider, cfg.FallbackProvider} {
		if name == "" {
			continue
		}
		if name != ProviderOpenAI && name != ProviderAnthropic {
			return nil, fmt.Errorf("unknown provider %q, expected %q or %q", name, ProviderOpenAI, ProviderAnthropic)
		}
	}
	if cfg.FallbackProvider == cfg.Provider {
		cfg.FallbackProvider = ""
	}
	return cfg, nil
}

// Backend returns the configuration slice for a recognized provider name.
func (c *Config) Backend(name string) (Backend, bool) {
	switch name {
	case ProviderOpenAI:
		return c.OpenAI, true
	case ProviderAnthropic:
		return c.Anthropic, true
	default:
		return Backend{}, false
	}
}

// Profile derives the pricing profile for a recognized provider name.
func (c *Config) Profile(name string) (provider.Profile, bool) {
	b, ok := c.Backend(name)
	if !ok {
		return provider.Profile{}, false
	}
	return provider.Profile{
		Name:                 name,
		Model:                b.Model,
		APIKeyEnv:            b.APIKeyEnv,
		CostPerMillionInput:  b.CostPerMillionInput,
		CostPerMillionOutput: b.CostPerMillionOutput,
	}, true
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
