package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paideia-ai/paideia/api"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/pkg/uuidx"
	"github.com/paideia-ai/paideia/provider"
)

// scriptedStreamer replays a fixed event sequence. The release channel, when
// set, holds the stream open so tests can observe the in-flight state.
type scriptedStreamer struct {
	events  []provider.StreamEvent
	release chan struct{}
	err     error

	mu       sync.Mutex
	requests []provider.Request
}

func (s *scriptedStreamer) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	out := make(chan provider.StreamEvent)
	go func() {
		defer close(out)
		if s.release != nil {
			<-s.release
		}
		for _, ev := range s.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// recordingSubscriber captures everything it is told and closes done on the
// first terminal callback.
type recordingSubscriber struct {
	mu        sync.Mutex
	tokens    []string
	completes []string
	usage     provider.Usage
	errs      []error
	done      chan struct{}
	once      sync.Once
}

func newRecordingSubscriber() *recordingSubscriber {
	return &recordingSubscriber{done: make(chan struct{})}
}

func (r *recordingSubscriber) OnToken(ctx context.Context, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
}

func (r *recordingSubscriber) OnComplete(ctx context.Context, fullText string, usage provider.Usage) {
	r.mu.Lock()
	r.completes = append(r.completes, fullText)
	r.usage = usage
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *recordingSubscriber) OnError(ctx context.Context, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *recordingSubscriber) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never reached a terminal callback")
	}
}

func chunks(tokens ...string) []provider.StreamEvent {
	runID := uuidx.New()
	events := []provider.StreamEvent{provider.Delim{RunID: runID, Delim: "start"}}
	for _, tok := range tokens {
		events = append(events, provider.Chunk{RunID: runID, Token: tok})
	}
	events = append(events,
		provider.Delim{RunID: runID, Delim: "end"},
		provider.Completion{
			RunID: runID,
			Text:  strings.Join(tokens, ""),
			Usage: provider.Usage{PromptTokens: 5, CompletionTokens: int64(len(tokens)), TotalTokens: 5 + int64(len(tokens))},
		},
	)
	return events
}

func TestSend_TokenOrderAndCompletion(t *testing.T) {
	streamer := &scriptedStreamer{events: chunks("The ", "cell ", "wall")}
	registry, err := NewRegistry(streamer)
	require.NoError(t, err)

	sub := newRecordingSubscriber()
	convID := uuidx.New()
	require.NoError(t, registry.Send(context.Background(), convID, "what is a cell wall?", sub))
	sub.wait(t)

	assert.Equal(t, []string{"The ", "cell ", "wall"}, sub.tokens)
	require.Len(t, sub.completes, 1)
	assert.Equal(t, "The cell wall", sub.completes[0])
	assert.Empty(t, sub.errs)
	assert.Equal(t, int64(8), sub.usage.TotalTokens)
	assert.False(t, registry.Active(convID))
}

func TestSend_WhileBusy(t *testing.T) {
	release := make(chan struct{})
	streamer := &scriptedStreamer{events: chunks("slow"), release: release}
	registry, err := NewRegistry(streamer)
	require.NoError(t, err)

	convID := uuidx.New()
	first := newRecordingSubscriber()
	require.NoError(t, registry.Send(context.Background(), convID, "hi", first))

	second := newRecordingSubscriber()
	err = registry.Send(context.Background(), convID, "again", second)
	require.Error(t, err)
	assert.Equal(t, aierr.CodeSendWhileBusy, aierr.CodeOf(err))

	// other conversations are unaffected
	otherStreamer := &scriptedStreamer{events: chunks("ok")}
	otherRegistry, err := NewRegistry(otherStreamer)
	require.NoError(t, err)
	other := newRecordingSubscriber()
	require.NoError(t, otherRegistry.Send(context.Background(), uuidx.New(), "hi", other))
	other.wait(t)

	close(release)
	first.wait(t)
	require.Len(t, first.completes, 1)

	// after completion the conversation accepts a fresh send
	third := newRecordingSubscriber()
	streamer.release = nil
	require.NoError(t, registry.Send(context.Background(), convID, "once more", third))
	third.wait(t)
	assert.Len(t, third.completes, 1)
}

func TestSend_ErrorDiscardsPartialBuffer(t *testing.T) {
	runID := uuidx.New()
	streamer := &scriptedStreamer{events: []provider.StreamEvent{
		provider.Delim{RunID: runID, Delim: "start"},
		provider.Chunk{RunID: runID, Token: "partial "},
		provider.Chunk{RunID: runID, Token: "answer"},
		provider.Error{RunID: runID, Err: aierr.Unavailable("fast", errors.New("connection reset"))},
	}}
	registry, err := NewRegistry(streamer)
	require.NoError(t, err)

	sub := newRecordingSubscriber()
	convID := uuidx.New()
	require.NoError(t, registry.Send(context.Background(), convID, "hi", sub))
	sub.wait(t)

	assert.Empty(t, sub.completes, "a failed session never yields a partial completion")
	require.Len(t, sub.errs, 1)
	assert.Equal(t, aierr.CodeProviderUnavailable, aierr.CodeOf(sub.errs[0]))
	assert.False(t, registry.Active(convID))
}

func TestSend_TerminalCallbackExactlyOnce(t *testing.T) {
	runID := uuidx.New()
	// a completion followed by a stray error must not produce a second terminal
	streamer := &scriptedStreamer{events: []provider.StreamEvent{
		provider.Chunk{RunID: runID, Token: "done"},
		provider.Completion{RunID: runID, Text: "done"},
		provider.Error{RunID: runID, Err: errors.New("stray")},
	}}
	registry, err := NewRegistry(streamer)
	require.NoError(t, err)

	sub := newRecordingSubscriber()
	require.NoError(t, registry.Send(context.Background(), uuidx.New(), "hi", sub))
	sub.wait(t)
	time.Sleep(50 * time.Millisecond)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Len(t, sub.completes, 1)
	assert.Empty(t, sub.errs)
}

func TestSend_StreamClosedWithoutTerminalFails(t *testing.T) {
	// a stream that closes with no Completion or Error must not wedge the
	// conversation: the subscriber gets exactly one OnError and the registry
	// entry is removed
	streamer := &scriptedStreamer{events: nil}
	registry, err := NewRegistry(streamer)
	require.NoError(t, err)

	sub := newRecordingSubscriber()
	convID := uuidx.New()
	require.NoError(t, registry.Send(context.Background(), convID, "hi", sub))
	sub.wait(t)

	assert.Empty(t, sub.completes)
	require.Len(t, sub.errs, 1)
	assert.Equal(t, aierr.CodeProviderUnavailable, aierr.CodeOf(sub.errs[0]))
	assert.False(t, registry.Active(convID))

	// the conversation accepts a fresh send afterwards
	streamer.events = chunks("recovered")
	next := newRecordingSubscriber()
	require.NoError(t, registry.Send(context.Background(), convID, "again", next))
	next.wait(t)
	require.Len(t, next.completes, 1)
	assert.Equal(t, "recovered", next.completes[0])
}

func TestSend_StartFailureDeliversOnError(t *testing.T) {
	streamer := &scriptedStreamer{err: aierr.RateLimited("fast")}
	registry, err := NewRegistry(streamer)
	require.NoError(t, err)

	sub := newRecordingSubscriber()
	convID := uuidx.New()
	require.NoError(t, registry.Send(context.Background(), convID, "hi", sub))
	sub.wait(t)

	require.Len(t, sub.errs, 1)
	assert.Equal(t, aierr.CodeRateLimited, aierr.CodeOf(sub.errs[0]))
	assert.False(t, registry.Active(convID))
}

func TestCancel(t *testing.T) {
	release := make(chan struct{})
	streamer := &scriptedStreamer{events: chunks("never delivered"), release: release}
	registry, err := NewRegistry(streamer)
	require.NoError(t, err)

	sub := newRecordingSubscriber()
	convID := uuidx.New()
	require.NoError(t, registry.Send(context.Background(), convID, "hi", sub))
	require.True(t, registry.Active(convID))

	sess, ok := registry.Get(convID)
	require.True(t, ok)

	registry.Cancel(convID)
	assert.False(t, registry.Active(convID))
	assert.Equal(t, Cancelled, sess.State())

	close(release)
	time.Sleep(50 * time.Millisecond)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Empty(t, sub.completes, "cancel must suppress onComplete")
	assert.Empty(t, sub.tokens)

	// cancelling a conversation with no session is a no-op
	registry.Cancel(uuidx.New())
}

func TestSend_HistoryFromStore(t *testing.T) {
	streamer := &scriptedStreamer{events: chunks("with history")}
	store := &fakeStore{
		conversations: map[string][]provider.Message{},
	}
	convID := uuidx.New()
	store.conversations[convID.String()] = []provider.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	registry, err := NewRegistry(streamer, WithStore(store), WithSystemPrompt("be helpful"))
	require.NoError(t, err)

	sub := newRecordingSubscriber()
	require.NoError(t, registry.Send(context.Background(), convID, "follow-up", sub))
	sub.wait(t)

	streamer.mu.Lock()
	require.Len(t, streamer.requests, 1)
	req := streamer.requests[0]
	streamer.mu.Unlock()

	assert.Equal(t, "be helpful", req.SystemPrompt)
	assert.Equal(t, "follow-up", req.UserPrompt)
	require.Len(t, req.History, 2)
	assert.Equal(t, "earlier question", req.History[0].Content)

	// the finished exchange is appended after the terminal callback, user turn first
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.conversations[convID.String()]) == 4
	}, 2*time.Second, 10*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	appended := store.conversations[convID.String()]
	assert.Equal(t, provider.Message{Role: "user", Content: "follow-up"}, appended[2])
	assert.Equal(t, provider.Message{Role: "assistant", Content: "with history"}, appended[3])
}

type fakeStore struct {
	mu            sync.Mutex
	conversations map[string][]provider.Message
}

func (f *fakeStore) LoadConversation(ctx context.Context, id uuid.UUID) (api.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return api.Conversation{ID: id, Messages: f.conversations[id.String()]}, nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, usage provider.Usage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := conversationID.String()
	f.conversations[key] = append(f.conversations[key], provider.Message{Role: role, Content: content})
	return nil
}

func (f *fakeStore) ProviderProfiles(ctx context.Context) ([]provider.Profile, error) {
	return nil, nil
}
