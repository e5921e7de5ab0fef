package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paideia-ai/paideia/pkg/uuidx"
	"github.com/paideia-ai/paideia/provider"
)

type collectingSubscriber struct {
	mu        sync.Mutex
	tokens    []string
	completes []string
	errs      []error
	done      chan struct{}
	once      sync.Once
}

func newCollectingSubscriber() *collectingSubscriber {
	return &collectingSubscriber{done: make(chan struct{})}
}

func (c *collectingSubscriber) OnToken(ctx context.Context, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = append(c.tokens, token)
}

func (c *collectingSubscriber) OnComplete(ctx context.Context, fullText string, usage provider.Usage) {
	c.mu.Lock()
	c.completes = append(c.completes, fullText)
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

func (c *collectingSubscriber) OnError(ctx context.Context, err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

func (c *collectingSubscriber) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never saw a terminal event")
	}
}

func TestLocalBroker_PublishForwards(t *testing.T) {
	ctx := context.Background()
	topic := Local().Topic(ctx, uuidx.NewString())

	sub := newCollectingSubscriber()
	handle, err := topic.Subscribe(ctx, sub)
	require.NoError(t, err)
	defer handle.Unsubscribe()

	runID := uuidx.New()
	require.NoError(t, topic.Publish(ctx, provider.Delim{RunID: runID, Delim: "start"}))
	require.NoError(t, topic.Publish(ctx, provider.Chunk{RunID: runID, Token: "hel"}))
	require.NoError(t, topic.Publish(ctx, provider.Chunk{RunID: runID, Token: "lo"}))
	require.NoError(t, topic.Publish(ctx, provider.Completion{RunID: runID, Text: "hello"}))

	sub.wait(t)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, []string{"hel", "lo"}, sub.tokens, "delims are control frames, not payload")
	assert.Equal(t, []string{"hello"}, sub.completes)
}

func TestLocalBroker_ErrorForwards(t *testing.T) {
	ctx := context.Background()
	topic := Local().Topic(ctx, uuidx.NewString())

	sub := newCollectingSubscriber()
	handle, err := topic.Subscribe(ctx, sub)
	require.NoError(t, err)
	defer handle.Unsubscribe()

	cause := errors.New("stream broke")
	require.NoError(t, topic.Publish(ctx, provider.Error{RunID: uuidx.New(), Err: cause}))

	sub.wait(t)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.errs, 1)
	assert.ErrorIs(t, sub.errs[0], cause)
}

func TestLocalBroker_NilSubscriberRejected(t *testing.T) {
	ctx := context.Background()
	topic := Local().Topic(ctx, uuidx.NewString())
	_, err := topic.Subscribe(ctx, nil)
	assert.Error(t, err)
}

func TestLocalBroker_SameTopicForSameID(t *testing.T) {
	ctx := context.Background()
	b := Local()
	id := uuidx.NewString()
	assert.Same(t, b.Topic(ctx, id), b.Topic(ctx, id))
}

func TestPublisherAdapter(t *testing.T) {
	ctx := context.Background()
	topic := Local().Topic(ctx, uuidx.NewString())

	sub := newCollectingSubscriber()
	handle, err := topic.Subscribe(ctx, sub)
	require.NoError(t, err)
	defer handle.Unsubscribe()

	relay := Publisher(topic)
	relay.OnToken(ctx, "a")
	relay.OnToken(ctx, "b")
	relay.OnComplete(ctx, "ab", provider.Usage{TotalTokens: 2})

	sub.wait(t)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, sub.tokens)
	assert.Equal(t, []string{"ab"}, sub.completes)
}
