package driven

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// ConversationStore persists question/answer history so follow-up
// questions carry context.
type ConversationStore interface {
	// CreateConversation starts a new conversation.
	CreateConversation(ctx context.Context, title string) (*domain.Conversation, error)

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// AddMessage appends a message to a conversation.
	AddMessage(ctx context.Context, conversationID string, role domain.MessageRole, content string) (*domain.Message, error)

	// GetMessages returns a conversation's messages, oldest first.
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}
