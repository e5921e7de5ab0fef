package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/paideia-ai/paideia/extract"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/provider"
)

// defaultConfidence stands in when the model omits its own confidence.
const defaultConfidence = 0.7

// GradingInput is one student answer to be graded against a reference.
type GradingInput struct {
	Question        string
	ReferenceAnswer string
	StudentAnswer   string
	Rubric          string
}

// Grade is a validated grading verdict. Score is normalized to [0,1].
type Grade struct {
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Feedback   string         `json:"feedback"`
	Usage      provider.Usage `json:"usage"`
	CostUSD    float64        `json:"costUsd"`
}

// Grader scores free-response answers. Graders run at temperature zero and
// should not be configured with a fallback: the rubric interpretation of one
// model family does not transfer to another.
type Grader struct {
	gen      Generator
	settings settings
}

// NewGrader creates the grading pipeline around a generator.
func NewGrader(gen Generator, options ...Option) *Grader {
	return &Grader{gen: gen, settings: newSettings(0, options)}
}

const gradingSystemPrompt = `You are a strict but fair grader.
Score the student's answer against the reference answer. Respond with a single JSON object and nothing else.`

func gradingPrompt(input GradingInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question:\n%s\n\n", input.Question)
	fmt.Fprintf(&sb, "Reference answer:\n%s\n\n", input.ReferenceAnswer)
	if input.Rubric != "" {
		fmt.Fprintf(&sb, "Rubric:\n%s\n\n", input.Rubric)
	}
	fmt.Fprintf(&sb, "Student answer:\n%s\n\n", input.StudentAnswer)
	sb.WriteString("Return score between 0 and 1, your confidence between 0 and 1, and concrete feedback for the student.")
	return sb.String()
}

func gradingSchema() *provider.StructuredOutput {
	return &provider.StructuredOutput{
		Name:        "grade",
		Description: "A grading verdict with normalized score and feedback",
		Schema: objectSchema([]string{"score", "feedback"},
			prop("score", numberSchema("score in [0,1]")),
			prop("confidence", numberSchema("grader confidence in [0,1]")),
			prop("feedback", stringSchema("feedback for the student")),
		),
	}
}

// Grade scores one answer. A response whose score falls outside [0,1] or whose
// feedback is empty fails with aierr.CodeSchemaValidation; an omitted
// confidence defaults rather than failing.
func (g *Grader) Grade(ctx context.Context, input GradingInput) (*Grade, error) {
	res, err := g.gen.Generate(ctx, provider.Request{
		SystemPrompt:   gradingSystemPrompt,
		UserPrompt:     gradingPrompt(input),
		Temperature:    g.settings.temperature,
		Shape:          provider.ShapeJSONObject,
		ResponseSchema: gradingSchema(),
	}, g.settings.callOptions()...)
	if err != nil {
		return nil, err
	}

	if err := extract.RequireFields(res.Parsed, "score", "feedback"); err != nil {
		return nil, err
	}

	grade := &Grade{
		Score:      res.Parsed.Get("score").Float(),
		Confidence: defaultConfidence,
		Feedback:   strings.TrimSpace(res.Parsed.Get("feedback").String()),
		Usage:      res.Usage,
		CostUSD:    res.CostUSD,
	}
	if conf := res.Parsed.Get("confidence"); conf.Exists() {
		grade.Confidence = conf.Float()
	}

	if grade.Score < 0 || grade.Score > 1 {
		return nil, aierr.SchemaViolation("score",
			fmt.Sprintf("score %v is outside [0,1]", grade.Score))
	}
	if grade.Feedback == "" {
		return nil, aierr.SchemaViolation("feedback", "feedback must not be empty")
	}
	return grade, nil
}
