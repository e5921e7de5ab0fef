package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_FALLBACK_PROVIDER", "")
	t.Setenv("AI_MAX_OUTPUT_TOKENS", "")
	t.Setenv("NATS_URL", "")
	t.Setenv("OPENAI_MODEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Empty(t, cfg.FallbackProvider)
	assert.Equal(t, defaultMaxTokens, cfg.MaxOutputTokens)
	assert.Equal(t, defaultNATSURL, cfg.NATSURL)
	assert.Equal(t, defaultOpenAIModel, cfg.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.OpenAI.APIKeyEnv)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("AI_FALLBACK_PROVIDER", "openai")
	t.Setenv("AI_MAX_OUTPUT_TOKENS", "2048")
	t.Setenv("ANTHROPIC_MODEL", "claude-3-7-sonnet-latest")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, ProviderOpenAI, cfg.FallbackProvider)
	assert.Equal(t, 2048, cfg.MaxOutputTokens)
	assert.Equal(t, "claude-3-7-sonnet-latest", cfg.Anthropic.Model)
	assert.Equal(t, "sk-test", cfg.Anthropic.APIKey)
}

func TestLoad_UnknownProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "mystery")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadMaxTokens(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_MAX_OUTPUT_TOKENS", "lots")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadCostRate(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_MAX_OUTPUT_TOKENS", "")
	t.Setenv("OPENAI_COST_PER_MILLION_INPUT", "cheap")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_COST_PER_MILLION_INPUT")
}

func TestLoad_FallbackEqualsPrimary(t *testing.T) {
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("AI_FALLBACK_PROVIDER", "openai")
	t.Setenv("AI_MAX_OUTPUT_TOKENS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.FallbackProvider, "a fallback equal to the primary is meaningless")
}

func TestProfile(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_MAX_OUTPUT_TOKENS", "")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg, err := Load()
	require.NoError(t, err)

	profile, ok := cfg.Profile(ProviderOpenAI)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", profile.Model)
	assert.Equal(t, "OPENAI_API_KEY", profile.APIKeyEnv)
	assert.Positive(t, profile.CostPerMillionOutput)

	_, ok = cfg.Profile("mystery")
	assert.False(t, ok)
}
