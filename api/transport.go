package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/paideia-ai/paideia/provider"
)

// Transport is the delivery collaborator: whatever bidirectional channel the
// surrounding system uses to reach the browser (WebSocket, SSE, long-poll).
// The session layer calls these methods in token arrival order; the terminal
// calls are made at most once per generation.
type Transport interface {
	// DeliverToken forwards one incremental token to the live client.
	DeliverToken(ctx context.Context, conversationID uuid.UUID, token string)

	// DeliverComplete forwards the assembled message and its final usage.
	DeliverComplete(ctx context.Context, conversationID uuid.UUID, fullText string, usage provider.Usage)

	// DeliverError forwards a classified failure.
	DeliverError(ctx context.Context, conversationID uuid.UUID, errorKind, message string)
}
