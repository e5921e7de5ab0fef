package provider

// Profile describes one configured backend: which model it serves, where its
// credential comes from, and what it costs. Profiles are loaded once at process
// start and are read-only thereafter.
type Profile struct {
	// Name is the configured backend name ("fast", "balanced", "premium").
	Name string `json:"name"`

	// Model is the backend model identifier.
	Model string `json:"model"`

	// APIKeyEnv names the environment variable holding the credential. The
	// credential itself is never stored on the profile.
	APIKeyEnv string `json:"api_key_env"`

	// CostPerMillionInput is the USD price per million prompt tokens.
	CostPerMillionInput float64 `json:"cost_per_million_input"`

	// CostPerMillionOutput is the USD price per million completion tokens.
	CostPerMillionOutput float64 `json:"cost_per_million_output"`
}

// Cost computes the USD cost of a generation from its token usage. The result
// is linear in both token counts.
func (p Profile) Cost(u Usage) float64 {
	in := float64(u.PromptTokens) * p.CostPerMillionInput / 1e6
	out := float64(u.CompletionTokens) * p.CostPerMillionOutput / 1e6
	return in + out
}
