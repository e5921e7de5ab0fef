package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/paideia-ai/paideia/provider"
)

// Conversation is the loaded history of one tutoring conversation.
type Conversation struct {
	ID       uuid.UUID
	Messages []provider.Message
}

// Store is the persistence collaborator. The orchestration core never issues
// its own queries; conversations and messages live in an external relational
// store, and the session layer calls these methods only at the boundary of a
// completed exchange.
type Store interface {
	// LoadConversation returns the conversation history, oldest message first.
	LoadConversation(ctx context.Context, id uuid.UUID) (Conversation, error)

	// AppendMessage records one finished message of a conversation together
	// with the usage it consumed.
	AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, usage provider.Usage) error

	// ProviderProfiles returns the configured backend profiles.
	ProviderProfiles(ctx context.Context) ([]provider.Profile, error)
}
