package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/paideia-ai/paideia/api"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/provider"
)

// Subscriber receives the live output of one session. It is bound at Send
// time and at most one subscriber is active per session: a client that
// disconnects and rejoins starts a fresh send, it does not multiplex.
//
// OnToken is invoked synchronously in token arrival order. OnComplete and
// OnError are terminal and invoked at most once each, never both.
type Subscriber interface {
	OnToken(ctx context.Context, token string)
	OnComplete(ctx context.Context, fullText string, usage provider.Usage)
	OnError(ctx context.Context, err error)
}

// ForTransport adapts the external transport collaborator into a Subscriber
// for one conversation.
func ForTransport(transport api.Transport, conversationID uuid.UUID) Subscriber {
	return &transportSubscriber{transport: transport, conversationID: conversationID}
}

type transportSubscriber struct {
	transport      api.Transport
	conversationID uuid.UUID
}

func (t *transportSubscriber) OnToken(ctx context.Context, token string) {
	t.transport.DeliverToken(ctx, t.conversationID, token)
}

func (t *transportSubscriber) OnComplete(ctx context.Context, fullText string, usage provider.Usage) {
	t.transport.DeliverComplete(ctx, t.conversationID, fullText, usage)
}

func (t *transportSubscriber) OnError(ctx context.Context, err error) {
	kind := string(aierr.CodeOf(err))
	if kind == "" {
		kind = "INTERNAL"
	}
	t.transport.DeliverError(ctx, t.conversationID, kind, err.Error())
}
