package broker

import (
	"context"

	"github.com/paideia-ai/paideia/provider"
	"github.com/paideia-ai/paideia/session"
)

// Broker hands out one topic per conversation id.
type Broker interface {
	Topic(context.Context, string) Topic
}

// Topic relays the stream events of one conversation to its subscribers.
type Topic interface {
	Publish(context.Context, provider.StreamEvent) error
	Subscribe(context.Context, session.Subscriber) (Subscription, error)
}

// Subscription is a handle to one active subscriber binding.
type Subscription interface {
	ID() string
	Unsubscribe()
}

// Publisher adapts a topic into a session subscriber, so a streaming session
// can relay its output through the broker to whatever transport is listening
// on the conversation's topic.
func Publisher(topic Topic) session.Subscriber {
	return &publisher{topic: topic}
}

type publisher struct {
	topic Topic
}

func (p *publisher) OnToken(ctx context.Context, token string) {
	_ = p.topic.Publish(ctx, provider.Chunk{Token: token})
}

func (p *publisher) OnComplete(ctx context.Context, fullText string, usage provider.Usage) {
	_ = p.topic.Publish(ctx, provider.Completion{Text: fullText, Usage: usage})
}

func (p *publisher) OnError(ctx context.Context, err error) {
	_ = p.topic.Publish(ctx, provider.Error{Err: err})
}
