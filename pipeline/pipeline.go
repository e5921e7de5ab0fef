package pipeline

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/paideia-ai/paideia"
	"github.com/paideia-ai/paideia/provider"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Generator is the generation entry point pipelines call into. The
// orchestrator satisfies it; tests inject scripted fakes.
type Generator interface {
	Generate(ctx context.Context, req provider.Request, options ...paideia.CallOption) (*provider.Result, error)
}

// Option adjusts how a pipeline issues its generation calls.
type Option func(*settings)

type settings struct {
	fallback    string
	temperature float64
}

// WithFallback names a backend to retry on when the primary fails with a
// retryable error. Grading pipelines should leave this unset: falling back
// across model families makes rubric interpretation inconsistent.
func WithFallback(name string) Option {
	return func(s *settings) { s.fallback = name }
}

// WithTemperature overrides the sampling temperature for this pipeline.
func WithTemperature(t float64) Option {
	return func(s *settings) { s.temperature = t }
}

func newSettings(defaultTemperature float64, options []Option) settings {
	s := settings{temperature: defaultTemperature}
	for _, opt := range options {
		opt(&s)
	}
	return s
}

func (s settings) callOptions() []paideia.CallOption {
	if s.fallback == "" {
		return nil
	}
	return []paideia.CallOption{paideia.WithFallback(s.fallback)}
}

// objectSchema assembles a JSON schema for an object with the given property
// order. Property order is preserved so prompts render deterministically.
func objectSchema(required []string, props ...schemaProp) *jsonschema.Schema {
	om := orderedmap.New[string, *jsonschema.Schema]()
	for _, p := range props {
		om.Set(p.name, p.schema)
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: om,
		Required:   required,
	}
}

type schemaProp struct {
	name   string
	schema *jsonschema.Schema
}

func prop(name string, schema *jsonschema.Schema) schemaProp {
	return schemaProp{name: name, schema: schema}
}

func stringSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func numberSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: description}
}

func integerSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func arraySchema(description string, items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: description, Items: items}
}
