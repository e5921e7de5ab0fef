// Package broker implements a pub/sub relay for distributing conversation
// stream events between the session layer and live transports. It provides a
// minimal interface for topic-based event distribution with context awareness.
//
// Design decisions:
//   - Context-first: All operations accept context.Context for cancellation/timeout
//   - Topic-per-conversation: each conversation id maps to one topic/subject
//   - Subscriber integration: topics forward directly onto session.Subscriber
//     callbacks, so a transport adapter works unchanged in- or out-of-process
//   - Subscription management: Explicit subscription lifecycle with cleanup
//   - Thread safety: Safe for concurrent publishing and subscribing
//
// Two implementations exist: Local (in-process, with slow-subscriber
// eviction) and NATS (cross-process, events marshaled with the provider
// package's wire codecs).
//
// Example usage:
//
//	b := broker.Local()
//	topic := b.Topic(ctx, conversationID.String())
//
//	// transport side
//	sub, _ := topic.Subscribe(ctx, session.ForTransport(ws, conversationID))
//	defer sub.Unsubscribe()
//
//	// session side
//	registry.Send(ctx, conversationID, content, broker.Publisher(topic))
package broker
