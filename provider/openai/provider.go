package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/pkg/uuidx"
	"github.com/paideia-ai/paideia/provider"
)

// defaultTimeout bounds the wall clock of one backend call. Exceeding it is
// classified as provider unavailability.
const defaultTimeout = 2 * time.Minute

// Client wraps one OpenAI-compatible backend behind the provider interface.
// It is stateless apart from the underlying HTTP client and safe to reuse
// concurrently.
type Client struct {
	client  *openai.Client
	name    string
	model   string
	timeout time.Duration
}

// New creates a client for the named backend serving the given model.
func New(name, model string, options ...option.RequestOption) *Client {
	return &Client{
		client:  openai.NewClient(options...),
		name:    name,
		model:   model,
		timeout: defaultTimeout,
	}
}

// WithTimeout overrides the per-request wall clock bound.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

func (c *Client) Name() string { return c.name }

func (c *Client) buildRequest(req provider.Request) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(req)),
	}
	for _, msg := range req.History {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(c.model),
		N:           openai.Int(1),
		Temperature: openai.Float(temperature),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	return params
}

// systemPrompt folds the expected output shape and optional response schema
// into the instructions, so the model formats its answer accordingly.
func systemPrompt(req provider.Request) string {
	prompt := req.SystemPrompt
	switch req.Shape {
	case provider.ShapeJSONObject:
		prompt += "\n\nRespond with a single JSON object and nothing else."
	case provider.ShapeJSONArray:
		prompt += "\n\nRespond with a single JSON array and nothing else."
	default:
		return prompt
	}
	if req.ResponseSchema != nil && req.ResponseSchema.Schema != nil {
		if sb, err := json.Marshal(req.ResponseSchema.Schema); err == nil {
			prompt += fmt.Sprintf("\nThe response must match the %s schema: %s", req.ResponseSchema.Name, sb)
		}
	}
	return prompt
}

func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chat, err := c.client.Chat.Completions.New(ctx, c.buildRequest(req))
	if err != nil {
		return nil, c.classify(err)
	}
	if len(chat.Choices) == 0 {
		return nil, aierr.Unavailable(c.name, errors.New("backend returned no choices"))
	}

	return &provider.Result{
		Text: chat.Choices[0].Message.Content,
		Usage: provider.Usage{
			PromptTokens:     chat.Usage.PromptTokens,
			CompletionTokens: chat.Usage.CompletionTokens,
			TotalTokens:      chat.Usage.TotalTokens,
		},
		Provider: c.name,
		Model:    chat.Model,
	}, nil
}

func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	params := c.buildRequest(req)
	params.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	})

	runID := uuidx.New()
	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)

		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		strm := c.client.Chat.Completions.NewStreaming(sctx, params)
		if strm.Err() != nil {
			events <- provider.Error{
				RunID:     runID,
				Err:       c.classify(strm.Err()),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			strm.Close()
			return
		}

		// Ensure cleanup on all exit paths
		defer func() {
			strm.Close()
			// Send error if context was cancelled
			if err := sctx.Err(); err != nil {
				events <- provider.Error{
					RunID:     runID,
					Err:       c.classify(err),
					Timestamp: strfmt.DateTime(time.Now()),
				}
			}
		}()

		var notFirst bool
		var acc openai.ChatCompletionAccumulator

		for strm.Next() {
			// Check context before processing each chunk
			if sctx.Err() != nil {
				return
			}

			if !notFirst {
				notFirst = true
				events <- provider.Delim{RunID: runID, Delim: "start"}
			}

			chunk := strm.Current()
			if strm.Err() != nil {
				events <- provider.Error{
					RunID:     runID,
					Err:       c.classify(strm.Err()),
					Timestamp: strfmt.DateTime(time.Now()),
				}
				return
			}

			acc.AddChunk(chunk)
			if token := chunkToken(&chunk); token != "" {
				events <- provider.Chunk{
					RunID:     runID,
					Token:     token,
					Timestamp: strfmt.DateTime(time.Now()),
				}
			}
		}

		if err := strm.Err(); err != nil {
			events <- provider.Error{
				RunID:     runID,
				Err:       c.classify(err),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}

		if sctx.Err() != nil {
			return
		}

		// even a zero-chunk stream ends with a terminal Completion
		if notFirst {
			events <- provider.Delim{RunID: runID, Delim: "end"}
		}
		compl := &acc.ChatCompletion
		var text string
		if len(compl.Choices) > 0 {
			text = compl.Choices[0].Message.Content
		}
		events <- provider.Completion{
			RunID: runID,
			Text:  text,
			Usage: provider.Usage{
				PromptTokens:     compl.Usage.PromptTokens,
				CompletionTokens: compl.Usage.CompletionTokens,
				TotalTokens:      compl.Usage.TotalTokens,
			},
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}()
	return events, nil
}

func chunkToken(chunk *openai.ChatCompletionChunk) string {
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

// classify maps backend error shapes into the shared taxonomy. Retrying is the
// orchestrator's responsibility, never the client's.
func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return aierr.FromStatus(c.name, apierr.StatusCode, apierr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return aierr.Unavailable(c.name, err)
	}

	return aierr.Unavailable(c.name, err)
}
