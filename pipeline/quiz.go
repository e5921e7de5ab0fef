package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/paideia-ai/paideia/extract"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/provider"
	"github.com/tidwall/gjson"
)

// QuestionType discriminates the supported quiz question kinds.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FreeResponse   QuestionType = "free_response"
)

const mcOptionCount = 4

// QuizInput describes the quiz a teacher asked for.
type QuizInput struct {
	Topic         string
	GradeLevel    string
	Difficulty    string
	NumQuestions  int
	QuestionTypes []QuestionType
}

// QuizOption is one labeled answer choice of a multiple-choice question.
type QuizOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// QuizQuestion is one validated generated question.
type QuizQuestion struct {
	Type            QuestionType `json:"type"`
	Prompt          string       `json:"prompt"`
	Points          int          `json:"points"`
	Options         []QuizOption `json:"options,omitempty"`
	CorrectLabel    string       `json:"correctLabel,omitempty"`
	ReferenceAnswer string       `json:"referenceAnswer,omitempty"`
}

// Quiz is a fully validated generated quiz. TotalPoints is always the sum of
// the per-question points, never a figure taken from the model.
type Quiz struct {
	Title       string         `json:"title"`
	Questions   []QuizQuestion `json:"questions"`
	TotalPoints int            `json:"totalPoints"`
	Usage       provider.Usage `json:"usage"`
	CostUSD     float64        `json:"costUsd"`
}

// Quizzes generates quizzes on a topic and enforces the quiz domain rules on
// the model output.
type Quizzes struct {
	gen      Generator
	settings settings
}

// NewQuizzes creates the quiz pipeline around a generator.
func NewQuizzes(gen Generator, options ...Option) *Quizzes {
	return &Quizzes{gen: gen, settings: newSettings(0.7, options)}
}

const quizSystemPrompt = `You are an experienced teacher writing assessment questions.
Respond with a single JSON object matching the requested structure. Do not include any prose outside the JSON.`

func quizPrompt(input QuizInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a quiz about %q with exactly %d questions.\n", input.Topic, input.NumQuestions)
	if input.GradeLevel != "" {
		fmt.Fprintf(&sb, "Target grade level: %s.\n", input.GradeLevel)
	}
	if input.Difficulty != "" {
		fmt.Fprintf(&sb, "Difficulty: %s.\n", input.Difficulty)
	}

	types := make([]string, len(input.QuestionTypes))
	for i, qt := range input.QuestionTypes {
		types[i] = string(qt)
	}
	fmt.Fprintf(&sb, "Use only these question types: %s.\n", strings.Join(types, ", "))
	fmt.Fprintf(&sb, "Every multiple_choice question must have exactly %d options labeled A through D, and correctLabel must be one of those labels.\n", mcOptionCount)
	sb.WriteString("Every free_response question must include a referenceAnswer.\n")
	sb.WriteString("Assign each question an integer points value.\n")
	return sb.String()
}

func quizSchema() *provider.StructuredOutput {
	option := objectSchema([]string{"label", "text"},
		prop("label", stringSchema("option label, A through D")),
		prop("text", stringSchema("option text")),
	)
	question := objectSchema([]string{"type", "prompt", "points"},
		prop("type", stringSchema("multiple_choice or free_response")),
		prop("prompt", stringSchema("the question text")),
		prop("points", integerSchema("points awarded for a correct answer")),
		prop("options", arraySchema("answer choices, multiple_choice only", option)),
		prop("correctLabel", stringSchema("label of the correct option, multiple_choice only")),
		prop("referenceAnswer", stringSchema("model answer, free_response only")),
	)
	return &provider.StructuredOutput{
		Name:        "quiz",
		Description: "A quiz with typed, pointed questions",
		Schema: objectSchema([]string{"title", "questions"},
			prop("title", stringSchema("quiz title")),
			prop("questions", arraySchema("the quiz questions", question)),
		),
	}
}

// Generate produces a validated quiz. A structurally valid response that
// breaks a quiz rule (wrong count, malformed options, missing reference
// answer) fails with aierr.CodeSchemaValidation and is not retried.
func (q *Quizzes) Generate(ctx context.Context, input QuizInput) (*Quiz, error) {
	if input.NumQuestions < 1 {
		return nil, fmt.Errorf("at least one question is required")
	}
	if len(input.QuestionTypes) == 0 {
		input.QuestionTypes = []QuestionType{MultipleChoice, FreeResponse}
	}

	res, err := q.gen.Generate(ctx, provider.Request{
		SystemPrompt:   quizSystemPrompt,
		UserPrompt:     quizPrompt(input),
		Temperature:    q.settings.temperature,
		Shape:          provider.ShapeJSONObject,
		ResponseSchema: quizSchema(),
	}, q.settings.callOptions()...)
	if err != nil {
		return nil, err
	}

	quiz, err := parseQuiz(res.Parsed, input)
	if err != nil {
		return nil, err
	}
	quiz.Usage = res.Usage
	quiz.CostUSD = res.CostUSD
	return quiz, nil
}

func parseQuiz(parsed gjson.Result, input QuizInput) (*Quiz, error) {
	if err := extract.RequireFields(parsed, "title", "questions"); err != nil {
		return nil, err
	}
	if err := extract.RequireEach(parsed, "questions", "type", "prompt", "points"); err != nil {
		return nil, err
	}

	raw := parsed.Get("questions").Array()
	if len(raw) != input.NumQuestions {
		return nil, aierr.SchemaViolation("questions",
			fmt.Sprintf("requested %d questions but the model produced %d", input.NumQuestions, len(raw)))
	}

	quiz := &Quiz{
		Title:     parsed.Get("title").String(),
		Questions: make([]QuizQuestion, 0, len(raw)),
	}
	for i, rq := range raw {
		question, err := parseQuestion(i, rq)
		if err != nil {
			return nil, err
		}
		quiz.Questions = append(quiz.Questions, question)
		quiz.TotalPoints += question.Points
	}
	return quiz, nil
}

func parseQuestion(idx int, rq gjson.Result) (QuizQuestion, error) {
	field := func(name string) string { return fmt.Sprintf("questions.%d.%s", idx, name) }

	question := QuizQuestion{
		Type:   QuestionType(rq.Get("type").String()),
		Prompt: rq.Get("prompt").String(),
		Points: int(rq.Get("points").Int()),
	}

	switch question.Type {
	case MultipleChoice:
		rawOptions := rq.Get("options").Array()
		if len(rawOptions) != mcOptionCount {
			return QuizQuestion{}, aierr.SchemaViolation(field("options"),
				fmt.Sprintf("multiple choice questions need exactly %d options, got %d", mcOptionCount, len(rawOptions)))
		}
		labels := make(map[string]bool, mcOptionCount)
		for j, ro := range rawOptions {
			label := ro.Get("label").String()
			text := ro.Get("text").String()
			if label == "" || text == "" {
				return QuizQuestion{}, aierr.SchemaViolation(
					fmt.Sprintf("%s.%d", field("options"), j),
					"every option needs a non-empty label and text")
			}
			labels[label] = true
			question.Options = append(question.Options, QuizOption{Label: label, Text: text})
		}
		question.CorrectLabel = rq.Get("correctLabel").String()
		if !labels[question.CorrectLabel] {
			return QuizQuestion{}, aierr.SchemaViolation(field("correctLabel"),
				fmt.Sprintf("correct label %q is not among the option labels", question.CorrectLabel))
		}
	case FreeResponse:
		question.ReferenceAnswer = strings.TrimSpace(rq.Get("referenceAnswer").String())
		if question.ReferenceAnswer == "" {
			return QuizQuestion{}, aierr.SchemaViolation(field("referenceAnswer"),
				"free response questions need a non-empty reference answer")
		}
	default:
		return QuizQuestion{}, aierr.SchemaViolation(field("type"),
			fmt.Sprintf("unknown question type %q", question.Type))
	}
	return question, nil
}
