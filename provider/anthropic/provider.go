// Package anthropic implements the provider interface for the Anthropic
// messages API over plain HTTP, including SSE stream decoding.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/pkg/uuidx"
	"github.com/paideia-ai/paideia/provider"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	apiVersion       = "2023-06-01"
	defaultTimeout   = 2 * time.Minute
	defaultMaxTokens = 4096
)

// Client talks to one Anthropic model behind the provider interface.
type Client struct {
	name       string
	model      string
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a client for the named backend serving the given model.
func New(name, model, apiKey string) *Client {
	return &Client{
		name:       name,
		model:      model,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		timeout:    defaultTimeout,
		httpClient: http.DefaultClient,
	}
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// WithTimeout overrides the per-request wall clock bound.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

func (c *Client) Name() string { return c.name }

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Content []apiContent `json:"content"`
	Usage   apiUsage     `json:"usage"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage apiUsage `json:"usage"`
	} `json:"message,omitempty"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
	Usage *apiUsage `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) mapRequest(req provider.Request, stream bool) apiRequest {
	messages := make([]apiMessage, 0, len(req.History)+1)
	for _, msg := range req.History {
		role := "user"
		if msg.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, apiMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, apiMessage{Role: "user", Content: req.UserPrompt})

	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return apiRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      systemPrompt(req),
		Messages:    messages,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func systemPrompt(req provider.Request) string {
	prompt := req.SystemPrompt
	switch req.Shape {
	case provider.ShapeJSONObject:
		prompt += "\n\nRespond with a single JSON object and nothing else."
	case provider.ShapeJSONArray:
		prompt += "\n\nRespond with a single JSON array and nothing else."
	}
	return prompt
}

func (c *Client) newHTTPRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	return httpReq, nil
}

func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(c.mapRequest(req, false))
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, aierr.FromStatus(c.name, resp.StatusCode, string(respBody))
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, aierr.Unavailable(c.name, err)
	}
	if len(apiResp.Content) == 0 {
		return nil, aierr.Unavailable(c.name, errors.New("backend returned no content"))
	}

	usage := provider.Usage{
		PromptTokens:     apiResp.Usage.InputTokens,
		CompletionTokens: apiResp.Usage.OutputTokens,
		TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
	}
	return &provider.Result{
		Text:     apiResp.Content[0].Text,
		Usage:    usage,
		Provider: c.name,
		Model:    apiResp.Model,
	}, nil
}

func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	body, err := json.Marshal(c.mapRequest(req, true))
	if err != nil {
		return nil, err
	}

	runID := uuidx.New()
	events := make(chan provider.StreamEvent, 10)

	go func() {
		defer close(events)

		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		httpReq, err := c.newHTTPRequest(sctx, body)
		if err != nil {
			events <- provider.Error{RunID: runID, Err: err, Timestamp: strfmt.DateTime(time.Now())}
			return
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			events <- provider.Error{RunID: runID, Err: c.classify(err), Timestamp: strfmt.DateTime(time.Now())}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			events <- provider.Error{
				RunID:     runID,
				Err:       aierr.FromStatus(c.name, resp.StatusCode, string(respBody)),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}

		c.relaySSE(sctx, runID, resp.Body, events)
	}()
	return events, nil
}

// relaySSE decodes the server-sent event stream into provider events. Token
// usage arrives split across message_start (input) and message_delta (output).
func (c *Client) relaySSE(ctx context.Context, runID uuid.UUID, body io.Reader, events chan<- provider.StreamEvent) {
	var (
		usage    provider.Usage
		text     strings.Builder
		notFirst bool
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			events <- provider.Error{RunID: runID, Err: c.classify(ctx.Err()), Timestamp: strfmt.DateTime(time.Now())}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				usage.PromptTokens = ev.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				continue
			}
			if !notFirst {
				notFirst = true
				events <- provider.Delim{RunID: runID, Delim: "start"}
			}
			text.WriteString(ev.Delta.Text)
			events <- provider.Chunk{RunID: runID, Token: ev.Delta.Text, Timestamp: strfmt.DateTime(time.Now())}
		case "message_delta":
			if ev.Usage != nil {
				usage.CompletionTokens = ev.Usage.OutputTokens
			}
		case "message_stop":
			if notFirst {
				events <- provider.Delim{RunID: runID, Delim: "end"}
			}
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			events <- provider.Completion{
				RunID:     runID,
				Text:      text.String(),
				Usage:     usage,
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		case "error":
			msg := "stream error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			events <- provider.Error{
				RunID:     runID,
				Err:       aierr.Unavailable(c.name, errors.New(msg)),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		events <- provider.Error{RunID: runID, Err: c.classify(err), Timestamp: strfmt.DateTime(time.Now())}
		return
	}

	// stream ended without message_stop
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	events <- provider.Completion{
		RunID:     runID,
		Text:      text.String(),
		Usage:     usage,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return aierr.Unavailable(c.name, err)
	}
	return aierr.Unavailable(c.name, err)
}
