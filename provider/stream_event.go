package provider

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	delimJSON      = []byte(`{"type":"delim"}`)
	chunkJSON      = []byte(`{"type":"chunk"}`)
	completionJSON = []byte(`{"type":"completion"}`)
	errorJSON      = []byte(`{"type":"error"}`)
)

// StreamEvent is the closed union of events a streaming completion can emit.
type StreamEvent interface {
	streamEvent()
}

// Delim marks a stream boundary ("start", "end", "empty").
type Delim struct {
	RunID uuid.UUID `json:"run_id"`
	Delim string    `json:"delim"`
}

func (Delim) streamEvent() {}

// Chunk is one incremental token fragment.
type Chunk struct {
	RunID     uuid.UUID       `json:"run_id"`
	Token     string          `json:"token"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Chunk) streamEvent() {}

// Completion terminates a successful stream with the assembled text and the
// final usage record.
type Completion struct {
	RunID     uuid.UUID       `json:"run_id"`
	Text      string          `json:"text"`
	Usage     Usage           `json:"usage"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Completion) streamEvent() {}

// Error terminates a failed stream.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, timestamp: %s, error: %v", e.RunID, e.Timestamp, e.Err)
}

func (e Error) Unwrap() error { return e.Err }

// MarshalJSON implements custom JSON marshaling for Delim
func (d Delim) MarshalJSON() ([]byte, error) {
	result := delimJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", d.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "delim", d.Delim)
	return result, err
}

// UnmarshalJSON implements custom JSON unmarshaling for Delim
func (d *Delim) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "delim" {
		return fmt.Errorf("missing or invalid type, expected 'delim'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := d.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return fmt.Errorf("missing required field 'delim'")
	}
	d.Delim = delim.String()

	return nil
}

// MarshalJSON implements custom JSON marshaling for Chunk
func (c Chunk) MarshalJSON() ([]byte, error) {
	result := chunkJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", c.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "token", c.Token)
	if err != nil {
		return nil, err
	}

	if !c.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", c.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Chunk
func (c *Chunk) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "chunk" {
		return fmt.Errorf("missing or invalid type, expected 'chunk'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := c.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	token := gjson.GetBytes(data, "token")
	if !token.Exists() {
		return fmt.Errorf("missing required field 'token'")
	}
	c.Token = token.String()

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := c.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling for Completion
func (c Completion) MarshalJSON() ([]byte, error) {
	result := completionJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", c.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "text", c.Text)
	if err != nil {
		return nil, err
	}

	usageBytes, err := json.Marshal(c.Usage)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal usage: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "usage", usageBytes)
	if err != nil {
		return nil, err
	}

	if !c.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", c.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Completion
func (c *Completion) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "completion" {
		return fmt.Errorf("missing or invalid type, expected 'completion'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := c.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	text := gjson.GetBytes(data, "text")
	if !text.Exists() {
		return fmt.Errorf("missing required field 'text'")
	}
	c.Text = text.String()

	usage := gjson.GetBytes(data, "usage")
	if !usage.Exists() {
		return fmt.Errorf("missing required field 'usage'")
	}
	if err := json.Unmarshal([]byte(usage.Raw), &c.Usage); err != nil {
		return fmt.Errorf("invalid usage: %w", err)
	}

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := c.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling for Error
func (e Error) MarshalJSON() ([]byte, error) {
	result := errorJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}

	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	}

	if !e.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Error
func (e *Error) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "error" {
		return fmt.Errorf("missing or invalid type, expected 'error'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := e.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := e.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}

// EventToJSON marshals a stream event with its type tag for transport.
func EventToJSON(event StreamEvent) ([]byte, error) {
	switch ev := event.(type) {
	case Delim:
		return ev.MarshalJSON()
	case Chunk:
		return ev.MarshalJSON()
	case Completion:
		return ev.MarshalJSON()
	case Error:
		return ev.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown event type %T", event)
	}
}

// EventFromJSON reconstructs a stream event from its transport encoding.
func EventFromJSON(data []byte) (StreamEvent, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	switch kind := gjson.GetBytes(data, "type").String(); kind {
	case "delim":
		var ev Delim
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	case "chunk":
		var ev Chunk
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	case "completion":
		var ev Completion
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	case "error":
		var ev Error
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", kind)
	}
}
