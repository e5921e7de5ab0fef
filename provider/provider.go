package provider

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// Provider defines the interface for AI model backends (e.g., OpenAI,
// Anthropic). Implementations handle the specifics of communicating with a
// single backend while presenting one consistent call shape to the rest of
// the application. Implementations are stateless and safe for concurrent use.
type Provider interface {
	// Name returns the configured name of this backend ("fast", "balanced", ...).
	Name() string

	// Complete issues a non-streaming completion and blocks until the backend
	// returns or fails with a classified error.
	Complete(context.Context, Request) (*Result, error)

	// Stream issues a streaming completion. The returned channel carries zero
	// or more Chunk events followed by exactly one Completion or Error, after
	// which it is closed. Delim events frame the chunk run.
	Stream(context.Context, Request) (<-chan StreamEvent, error)
}

// Shape declares what structure the caller expects the model output to have.
type Shape string

const (
	// ShapeFreeText accepts the raw model text as-is.
	ShapeFreeText Shape = "free_text"
	// ShapeJSONObject requires the output to parse as a JSON object.
	ShapeJSONObject Shape = "json_object"
	// ShapeJSONArray requires the output to parse as a JSON array.
	ShapeJSONArray Shape = "json_array"
)

// Message is a single turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request encapsulates all parameters for one generation. Requests are value
// objects: they carry no conversation identity and may be reused by any caller.
type Request struct {
	// SystemPrompt provides the system or role instructions for the model.
	SystemPrompt string

	// UserPrompt is the final user turn of this request.
	UserPrompt string

	// History holds prior conversation turns, oldest first.
	History []Message

	// MaxOutputTokens bounds the response length. Zero means the orchestrator's
	// configured default.
	MaxOutputTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// Shape declares the structure expected of the output.
	Shape Shape

	// ResponseSchema optionally describes the desired JSON structure. When set,
	// clients fold it into the prompt so the model formats accordingly.
	ResponseSchema *StructuredOutput

	// Prevents unkeyed literals
	_ struct{}
}

// StructuredOutput defines a schema for formatted model responses.
type StructuredOutput struct {
	// Name identifies this output format
	Name string

	// Description explains the purpose and usage of this format
	Description string

	// Schema defines the JSON structure that responses should follow
	Schema *jsonschema.Schema
}

// Usage reports token consumption for one generation.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates the counters from o into u.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// Result is the outcome of a completed generation. Immutable once produced.
type Result struct {
	// Text is the raw model output.
	Text string

	// Parsed holds the extracted JSON value for structured shapes. It is only
	// populated by the orchestrator, never by clients.
	Parsed gjson.Result

	// Usage reports token consumption for this call.
	Usage Usage

	// Provider names the backend that produced this result.
	Provider string

	// Model is the backend model identifier that produced this result.
	Model string

	// CostUSD is the metered cost of this call, derived from the provider
	// profile's per-million-token rates.
	CostUSD float64
}
