package session

import (
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/paideia-ai/paideia/provider"
)

// State is the lifecycle position of a streaming session.
type State int

const (
	// Pending means the session was created but no token has arrived yet.
	Pending State = iota
	// Streaming means at least one token has been relayed to the subscriber.
	Streaming
	// Completed means the provider finished and usage was finalized.
	Completed
	// Failed means the provider or extraction raised a classified error.
	Failed
	// Cancelled means the subscriber detached before completion.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible out of s.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Session is one in-flight generation bound to a conversation. It owns the
// append-only token buffer, the usage counters, and the lifecycle state.
// Sessions are created by Registry.Send and destroyed when they reach a
// terminal state; they are never persisted.
type Session struct {
	conversationID uuid.UUID
	runID          uuid.UUID

	mu         sync.Mutex
	state      State
	buffer     []string
	usage      provider.Usage
	startedAt  strfmt.DateTime
	finishedAt strfmt.DateTime

	subscriber Subscriber
	cancel     func()
}

// ConversationID returns the conversation this session belongs to.
func (s *Session) ConversationID() uuid.UUID { return s.conversationID }

// RunID returns the unique identifier of this generation.
func (s *Session) RunID() uuid.UUID { return s.runID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffer returns a copy of the tokens accumulated so far, in arrival order.
func (s *Session) Buffer() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// Usage returns the usage counters. They are zero until the session completes.
func (s *Session) Usage() provider.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// StartedAt returns the session creation time.
func (s *Session) StartedAt() strfmt.DateTime { return s.startedAt }

// FinishedAt returns the time the session entered a terminal state.
func (s *Session) FinishedAt() strfmt.DateTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

// appendToken records one token and moves Pending sessions to Streaming.
// It reports false once the session is terminal, which tells the drain loop
// to stop forwarding.
func (s *Session) appendToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	if s.state == Pending {
		s.state = Streaming
	}
	s.buffer = append(s.buffer, token)
	return true
}

// transition moves the session into a terminal state. It reports false when
// the session already reached one, which guarantees the terminal callbacks
// fire at most once.
func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = to
	s.finishedAt = strfmt.DateTime(time.Now())
	return true
}

// finalize transitions into Completed, records the final usage exactly once,
// and returns the assembled message text. For providers that only report the
// full text in the terminal event, the event text is used when no tokens were
// buffered.
func (s *Session) finalize(ev provider.Completion) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return "", false
	}
	s.state = Completed
	s.usage = ev.Usage
	s.finishedAt = strfmt.DateTime(time.Now())

	full := strings.Join(s.buffer, "")
	if full == "" {
		full = ev.Text
	}
	return full, true
}
