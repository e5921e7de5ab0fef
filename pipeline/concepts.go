package pipeline

import (
	"context"
	"fmt"

	"github.com/paideia-ai/paideia/extract"
	"github.com/paideia-ai/paideia/provider"
)

// Concept is one key idea extracted from study material.
type Concept struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ConceptExtraction is the validated list of concepts found in one source text.
type ConceptExtraction struct {
	Concepts []Concept      `json:"concepts"`
	Usage    provider.Usage `json:"usage"`
	CostUSD  float64        `json:"costUsd"`
}

// Concepts extracts the key ideas from source material, as a flat list the
// tutoring side links quiz questions and lessons back to.
type Concepts struct {
	gen      Generator
	settings settings
}

// NewConcepts creates the concept extraction pipeline around a generator.
func NewConcepts(gen Generator, options ...Option) *Concepts {
	return &Concepts{gen: gen, settings: newSettings(0.2, options)}
}

const conceptsSystemPrompt = `You extract the key concepts from study material.
Respond with a single JSON array of concept objects and nothing else.`

func conceptsSchema() *provider.StructuredOutput {
	concept := objectSchema([]string{"name", "description"},
		prop("name", stringSchema("short concept name")),
		prop("description", stringSchema("one or two sentence explanation")),
	)
	return &provider.StructuredOutput{
		Name:        "concepts",
		Description: "Key concepts found in the source material",
		Schema:      arraySchema("the extracted concepts", concept),
	}
}

// Extract pulls the key concepts out of sourceText. Every element must carry
// a name and a description; an empty array is a valid result for trivial input.
func (c *Concepts) Extract(ctx context.Context, sourceText string) (*ConceptExtraction, error) {
	res, err := c.gen.Generate(ctx, provider.Request{
		SystemPrompt:   conceptsSystemPrompt,
		UserPrompt:     fmt.Sprintf("Extract the key concepts from the following material:\n\n%s", sourceText),
		Temperature:    c.settings.temperature,
		Shape:          provider.ShapeJSONArray,
		ResponseSchema: conceptsSchema(),
	}, c.settings.callOptions()...)
	if err != nil {
		return nil, err
	}

	if err := extract.RequireEach(res.Parsed, "", "name", "description"); err != nil {
		return nil, err
	}

	raw := res.Parsed.Array()
	extraction := &ConceptExtraction{
		Concepts: make([]Concept, 0, len(raw)),
		Usage:    res.Usage,
		CostUSD:  res.CostUSD,
	}
	for _, rc := range raw {
		extraction.Concepts = append(extraction.Concepts, Concept{
			Name:        rc.Get("name").String(),
			Description: rc.Get("description").String(),
		})
	}
	return extraction, nil
}
