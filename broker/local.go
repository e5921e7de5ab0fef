package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/paideia-ai/paideia/pkg/uuidx"
	"github.com/paideia-ai/paideia/provider"
	"github.com/paideia-ai/paideia/session"
)

const defaultSlowSubscriberTimeout = 100 * time.Millisecond

type localBroker struct {
	topics                *haxmap.Map[string, *topic]
	slowSubscriberTimeout time.Duration
}

// Local creates an in-process broker. Suitable for single-node deployments
// and tests; use NATS for anything crossing process boundaries.
func Local() Broker {
	return &localBroker{
		topics:                haxmap.New[string, *topic](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

// WithSlowSubscriberTimeout configures the timeout for detecting slow subscribers
func (b *localBroker) WithSlowSubscriberTimeout(timeout time.Duration) *localBroker {
	b.slowSubscriberTimeout = timeout
	return b
}

func (b *localBroker) Topic(ctx context.Context, id string) Topic {
	top, _ := b.topics.GetOrCompute(id, func() *topic {
		return &topic{
			id:                    id,
			subscriptions:         haxmap.New[string, *subscription](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return top
}

type topic struct {
	id                    string
	subscriptions         *haxmap.Map[string, *subscription]
	slowSubscriberTimeout time.Duration
}

func (t *topic) Publish(ctx context.Context, event provider.StreamEvent) error {
	t.subscriptions.ForEach(func(id string, sub *subscription) bool {
		if sub == nil {
			return true
		}

		// Check if subscription is still active
		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		// Try to send the event
		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case sub.channel <- event:
			// Successfully sent
		case <-time.After(t.slowSubscriberTimeout):
			// Channel is full after timeout, unsubscribe
			sub.Unsubscribe()
		}
		return true
	})
	return nil
}

func (t *topic) Subscribe(ctx context.Context, sub session.Subscriber) (Subscription, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscriber is required")
	}
	s := t.newSubscription(ctx, sub)
	return s, nil
}

func (t *topic) newSubscription(ctx context.Context, target session.Subscriber) *subscription {
	id := uuidx.NewString()
	sub := &subscription{
		id:        id, // Use the same ID for both the subscription and map key
		ctx:       ctx,
		channel:   make(chan provider.StreamEvent, 50),
		closeOnce: sync.Once{},
		onClose:   func() { t.subscriptions.Del(id) },
		target:    target,
	}
	t.subscriptions.Set(id, sub)
	go sub.forward()
	return sub
}

type subscription struct {
	id        string
	ctx       context.Context
	channel   chan provider.StreamEvent
	closeOnce sync.Once
	onClose   func()
	target    session.Subscriber
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.channel)
	})
}

func (s *subscription) forward() {
	for {
		select {
		case event, ok := <-s.channel:
			if !ok {
				return
			}
			forwardEvent(s.ctx, event, s.target)
		case <-s.ctx.Done():
			return
		}
	}
}

// forwardEvent maps relayed stream events onto subscriber callbacks. Delim
// events are stream control and are not forwarded.
func forwardEvent(ctx context.Context, event provider.StreamEvent, target session.Subscriber) {
	switch ev := event.(type) {
	case provider.Delim:
	case provider.Chunk:
		target.OnToken(ctx, ev.Token)
	case provider.Completion:
		target.OnComplete(ctx, ev.Text, ev.Usage)
	case provider.Error:
		target.OnError(ctx, ev.Err)
	default:
		panic(fmt.Sprintf("unknown event type: %T", event))
	}
}
