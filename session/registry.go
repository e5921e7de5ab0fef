package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/paideia-ai/paideia/api"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/pkg/slogx"
	"github.com/paideia-ai/paideia/pkg/uuidx"
	"github.com/paideia-ai/paideia/provider"
)

// Streamer starts a streaming generation. The orchestrator's streaming entry
// point satisfies it, and tests inject scripted fakes.
type Streamer interface {
	Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error)
}

// Registry is the process-wide map from conversation id to at most one active
// session. It enforces the at-most-one-in-flight invariant per conversation
// and routes send and cancel requests to the right session.
//
// The conversation map is the only shared mutable state in the streaming
// core; every operation on one conversation (send, chunk append, cancel,
// removal) is serialized through the session's own mutex, so a send racing a
// cancel for the same id resolves deterministically. A send that arrives just
// after a completed session was removed simply creates a fresh session.
type Registry struct {
	sessions     *haxmap.Map[string, *Session]
	streamer     Streamer
	store        api.Store
	systemPrompt string
}

// WithStore attaches the persistence collaborator. When set, the conversation
// history is loaded before each send and the finished exchange is appended
// after completion.
var WithStore = opts.ForType[Registry, api.Store]()

// WithSystemPrompt sets the system instructions used for every send.
var WithSystemPrompt = opts.ForName[Registry, string]("systemPrompt")

// NewRegistry creates a session registry around the given streamer.
func NewRegistry(streamer Streamer, options ...opts.Option[Registry]) (*Registry, error) {
	if streamer == nil {
		return nil, errors.New("streamer is required")
	}
	r := &Registry{
		sessions: haxmap.New[string, *Session](),
		streamer: streamer,
	}
	if err := opts.Apply(r, options); err != nil {
		return nil, err
	}
	return r, nil
}

// Active reports whether a conversation currently has a live session.
func (r *Registry) Active(conversationID uuid.UUID) bool {
	_, ok := r.sessions.Get(conversationID.String())
	return ok
}

// Get returns the live session for a conversation, if any.
func (r *Registry) Get(conversationID uuid.UUID) (*Session, bool) {
	return r.sessions.Get(conversationID.String())
}

// Send starts a new generation for the conversation and binds the subscriber.
//
// It fails with aierr.CodeSendWhileBusy when a Pending or Streaming session
// already exists for the conversation: messages are strictly serialized, never
// queued or interleaved. Once the stream is under way, all failures are
// delivered through the subscriber's OnError, not returned here.
func (r *Registry) Send(ctx context.Context, conversationID uuid.UUID, content string, sub Subscriber) error {
	if sub == nil {
		return errors.New("subscriber is required")
	}

	key := conversationID.String()
	sctx, cancel := context.WithCancel(ctx)

	sess := &Session{
		conversationID: conversationID,
		runID:          uuidx.New(),
		state:          Pending,
		startedAt:      strfmt.DateTime(time.Now()),
		subscriber:     sub,
		cancel:         cancel,
	}

	if _, loaded := r.sessions.GetOrCompute(key, func() *Session { return sess }); loaded {
		cancel()
		return aierr.SendWhileBusy(key)
	}

	req := provider.Request{
		SystemPrompt: r.systemPrompt,
		UserPrompt:   content,
		Shape:        provider.ShapeFreeText,
	}
	if r.store != nil {
		conv, err := r.store.LoadConversation(sctx, conversationID)
		if err != nil {
			slog.Warn("failed to load conversation history",
				slogx.Error(err), slogx.Conversation(conversationID))
		} else {
			req.History = conv.Messages
		}
	}

	stream, err := r.streamer.Stream(sctx, req)
	if err != nil {
		r.fail(sctx, sess, err)
		return nil
	}

	go r.drain(sctx, sess, content, stream)
	return nil
}

// Cancel detaches the conversation's live session, if any. The session stops
// forwarding provider output and OnComplete will not fire; the underlying
// provider call is cancelled cooperatively but may already have billed tokens.
func (r *Registry) Cancel(conversationID uuid.UUID) {
	key := conversationID.String()
	sess, ok := r.sessions.Get(key)
	if !ok {
		return
	}
	if !sess.transition(Cancelled) {
		return
	}
	r.sessions.Del(key)
	sess.cancel()
}

// drain consumes provider events for one session. It is the only goroutine
// that touches the session after Send returns, so tokens reach the subscriber
// in exact arrival order.
func (r *Registry) drain(ctx context.Context, sess *Session, userContent string, stream <-chan provider.StreamEvent) {
	defer sess.cancel()

	for {
		select {
		case event, hasMore := <-stream:
			if !hasMore {
				// a provider closing the channel without a terminal event is a
				// failure, never a silent end: the subscriber must always see
				// exactly one terminal callback
				r.fail(ctx, sess, aierr.New(aierr.CodeProviderUnavailable, "stream ended without a terminal event"))
				return
			}
			switch ev := event.(type) {
			case provider.Delim:
				// stream boundaries carry no payload
			case provider.Chunk:
				if !sess.appendToken(ev.Token) {
					// session was cancelled, stop consuming
					return
				}
				sess.subscriber.OnToken(ctx, ev.Token)
			case provider.Completion:
				r.complete(ctx, sess, userContent, ev)
				return
			case provider.Error:
				r.fail(ctx, sess, ev.Err)
				return
			}
		case <-ctx.Done():
			if sess.transition(Cancelled) {
				r.sessions.Del(sess.conversationID.String())
			}
			return
		}
	}
}

func (r *Registry) complete(ctx context.Context, sess *Session, userContent string, ev provider.Completion) {
	full, ok := sess.finalize(ev)
	if !ok {
		return
	}
	r.sessions.Del(sess.conversationID.String())
	sess.subscriber.OnComplete(ctx, full, ev.Usage)

	if r.store != nil {
		if err := r.store.AppendMessage(ctx, sess.conversationID, "user", userContent, provider.Usage{}); err != nil {
			slog.Warn("failed to persist user message", slogx.Error(err))
		}
		if err := r.store.AppendMessage(ctx, sess.conversationID, "assistant", full, ev.Usage); err != nil {
			slog.Warn("failed to persist assistant message", slogx.Error(err))
		}
	}
}

// fail transitions the session to Failed and delivers the error exactly once.
// Partial buffer content is discarded with the session: a failed generation
// never yields a partial completion.
func (r *Registry) fail(ctx context.Context, sess *Session, err error) {
	if !sess.transition(Failed) {
		return
	}
	r.sessions.Del(sess.conversationID.String())
	sess.subscriber.OnError(ctx, err)
}
