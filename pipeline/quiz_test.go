package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/paideia-ai/paideia"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/provider"
)

// fakeGenerator hands back a pre-parsed result and records the request.
type fakeGenerator struct {
	text string
	err  error

	requests []provider.Request
	options  []paideia.CallOption
}

func (f *fakeGenerator) Generate(ctx context.Context, req provider.Request, options ...paideia.CallOption) (*provider.Result, error) {
	f.requests = append(f.requests, req)
	f.options = append(f.options, options...)
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{
		Text:    f.text,
		Parsed:  gjson.Parse(f.text),
		Usage:   provider.Usage{PromptTokens: 200, CompletionTokens: 400, TotalTokens: 600},
		CostUSD: 0.0042,
	}, nil
}

func mcQuestion(points int) string {
	return fmt.Sprintf(`{
		"type": "multiple_choice",
		"prompt": "Which organelle performs photosynthesis?",
		"points": %d,
		"options": [
			{"label": "A", "text": "Mitochondrion"},
			{"label": "B", "text": "Chloroplast"},
			{"label": "C", "text": "Nucleus"},
			{"label": "D", "text": "Ribosome"}
		],
		"correctLabel": "B"
	}`, points)
}

func frQuestion(points int) string {
	return fmt.Sprintf(`{
		"type": "free_response",
		"prompt": "Explain the light-dependent reactions.",
		"points": %d,
		"referenceAnswer": "They convert light energy into ATP and NADPH in the thylakoid membrane."
	}`, points)
}

func quizJSON(questions ...string) string {
	return fmt.Sprintf(`{"title":"Photosynthesis Quiz","questions":[%s]}`, strings.Join(questions, ","))
}

func TestQuizGenerate_MixedTypes(t *testing.T) {
	// 7 multiple choice plus 3 free response, points 1..10
	var questions []string
	for i := 1; i <= 7; i++ {
		questions = append(questions, mcQuestion(i))
	}
	for i := 8; i <= 10; i++ {
		questions = append(questions, frQuestion(i))
	}

	gen := &fakeGenerator{text: quizJSON(questions...)}
	quizzes := NewQuizzes(gen)

	quiz, err := quizzes.Generate(context.Background(), QuizInput{
		Topic:         "photosynthesis",
		NumQuestions:  10,
		QuestionTypes: []QuestionType{MultipleChoice, FreeResponse},
	})
	require.NoError(t, err)

	assert.Len(t, quiz.Questions, 10)
	assert.Equal(t, 55, quiz.TotalPoints, "total is the sum of the ten per-question points")
	assert.Equal(t, "Photosynthesis Quiz", quiz.Title)
	assert.Equal(t, int64(600), quiz.Usage.TotalTokens)
	assert.InDelta(t, 0.0042, quiz.CostUSD, 1e-12)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, provider.ShapeJSONObject, req.Shape)
	require.NotNil(t, req.ResponseSchema)
	assert.Equal(t, "quiz", req.ResponseSchema.Name)
	assert.Contains(t, req.UserPrompt, "exactly 10 questions")
}

func TestQuizGenerate_CountMismatch(t *testing.T) {
	gen := &fakeGenerator{text: quizJSON(mcQuestion(2), mcQuestion(2))}
	quizzes := NewQuizzes(gen)

	_, err := quizzes.Generate(context.Background(), QuizInput{Topic: "cells", NumQuestions: 3})
	require.Error(t, err)
	assert.Equal(t, aierr.CodeSchemaValidation, aierr.CodeOf(err))
	assert.Contains(t, err.Error(), "3")
	assert.Contains(t, err.Error(), "2")
}

func TestQuizGenerate_WrongOptionCount(t *testing.T) {
	threeOptions := `{
		"type": "multiple_choice",
		"prompt": "Pick one",
		"points": 1,
		"options": [
			{"label": "A", "text": "one"},
			{"label": "B", "text": "two"},
			{"label": "C", "text": "three"}
		],
		"correctLabel": "A"
	}`
	gen := &fakeGenerator{text: quizJSON(threeOptions)}
	quizzes := NewQuizzes(gen)

	_, err := quizzes.Generate(context.Background(), QuizInput{Topic: "cells", NumQuestions: 1})
	require.Error(t, err)

	var ae *aierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "questions.0.options", ae.Field)
}

func TestQuizGenerate_CorrectLabelNotInOptions(t *testing.T) {
	bad := strings.Replace(mcQuestion(1), `"correctLabel": "B"`, `"correctLabel": "E"`, 1)
	gen := &fakeGenerator{text: quizJSON(bad)}
	quizzes := NewQuizzes(gen)

	_, err := quizzes.Generate(context.Background(), QuizInput{Topic: "cells", NumQuestions: 1})
	require.Error(t, err)

	var ae *aierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "questions.0.correctLabel", ae.Field)
}

func TestQuizGenerate_MissingReferenceAnswer(t *testing.T) {
	bad := strings.Replace(frQuestion(1),
		`"referenceAnswer": "They convert light energy into ATP and NADPH in the thylakoid membrane."`,
		`"referenceAnswer": "  "`, 1)
	gen := &fakeGenerator{text: quizJSON(bad)}
	quizzes := NewQuizzes(gen)

	_, err := quizzes.Generate(context.Background(), QuizInput{Topic: "cells", NumQuestions: 1})
	require.Error(t, err)

	var ae *aierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "questions.0.referenceAnswer", ae.Field)
}

func TestQuizGenerate_UnknownType(t *testing.T) {
	bad := `{"type":"matching","prompt":"match these","points":1}`
	gen := &fakeGenerator{text: quizJSON(bad)}
	quizzes := NewQuizzes(gen)

	_, err := quizzes.Generate(context.Background(), QuizInput{Topic: "cells", NumQuestions: 1})
	require.Error(t, err)
	assert.Equal(t, aierr.CodeSchemaValidation, aierr.CodeOf(err))
}

func TestQuizGenerate_PropagatesGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: aierr.RateLimited("fast")}
	quizzes := NewQuizzes(gen)

	_, err := quizzes.Generate(context.Background(), QuizInput{Topic: "cells", NumQuestions: 1})
	require.Error(t, err)
	assert.Equal(t, aierr.CodeRateLimited, aierr.CodeOf(err))
}

func TestQuizGenerate_InputValidation(t *testing.T) {
	gen := &fakeGenerator{text: quizJSON()}
	quizzes := NewQuizzes(gen)

	_, err := quizzes.Generate(context.Background(), QuizInput{Topic: "cells"})
	require.Error(t, err)
	assert.Empty(t, gen.requests, "invalid input never reaches the backend")
}
