package driving

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// AnswerService produces grounded, cited answers to natural-language
// questions.
type AnswerService interface {
	// QueryWithSources retrieves context for the question, asks the
	// reasoning model, resolves its [N] citation markers and persists
	// the exchange. conversationID may be empty to start a new
	// conversation; the returned Answer carries the id to continue it.
	// maxChunks overrides the configured context budget when positive.
	QueryWithSources(ctx context.Context, question, conversationID string, documentIDs []string, maxChunks int) (*domain.Answer, error)
}
