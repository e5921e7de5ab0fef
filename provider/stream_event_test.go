package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/paideia-ai/paideia/pkg/uuidx"
)

func TestEventWireRoundTrip(t *testing.T) {
	runID := uuidx.New()

	events := []StreamEvent{
		Delim{RunID: runID, Delim: "start"},
		Chunk{RunID: runID, Token: "photosyn"},
		Completion{RunID: runID, Text: "photosynthesis", Usage: Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}},
		Error{RunID: runID, Err: errors.New("backend gone")},
	}

	for _, event := range events {
		data, err := EventToJSON(event)
		require.NoError(t, err)
		assert.True(t, gjson.ValidBytes(data))

		decoded, err := EventFromJSON(data)
		require.NoError(t, err)

		switch ev := decoded.(type) {
		case Delim:
			assert.Equal(t, event.(Delim), ev)
		case Chunk:
			assert.Equal(t, event.(Chunk).Token, ev.Token)
			assert.Equal(t, runID, ev.RunID)
		case Completion:
			assert.Equal(t, event.(Completion).Text, ev.Text)
			assert.Equal(t, event.(Completion).Usage, ev.Usage)
		case Error:
			assert.EqualError(t, ev.Err, "backend gone")
		default:
			t.Fatalf("unexpected decoded type %T", decoded)
		}
	}
}

func TestEventFromJSON_Rejects(t *testing.T) {
	_, err := EventFromJSON([]byte(`not json`))
	assert.Error(t, err)

	_, err = EventFromJSON([]byte(`{"type":"mystery"}`))
	assert.Error(t, err)

	_, err = EventFromJSON([]byte(`{"type":"chunk","token":"x"}`))
	assert.Error(t, err, "chunk without run_id must be rejected")
}

func TestChunkUnmarshal_TypeMismatch(t *testing.T) {
	var c Chunk
	err := c.UnmarshalJSON([]byte(`{"type":"delim","run_id":"` + uuidx.NewString() + `","delim":"start"}`))
	assert.Error(t, err)
}

func TestErrorEventUnwrap(t *testing.T) {
	cause := errors.New("boom")
	ev := Error{RunID: uuidx.New(), Err: cause}
	assert.ErrorIs(t, ev, cause)
	assert.Contains(t, ev.Error(), "boom")
}
