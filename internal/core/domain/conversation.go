package domain

import "time"

// MessageRole distinguishes who produced a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Conversation groups a sequence of question/answer messages so that
// follow-up questions can carry history.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single turn in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}

// Citation links a claim in a generated answer back to the chunk that
// supports it. The anchor (page or timestamp) comes from the chunk, the
// title from its document, and the score from retrieval fusion.
type Citation struct {
	ChunkID        int64
	DocumentID     string
	DocumentTitle  string
	FilePath       string
	ContentSnippet string
	PageNumber     *int
	Timestamp      *float64
	RelevanceScore float64
}

// Answer is the result of a grounded query: generated prose plus the
// citations resolved from its [N] markers and the chunks that were
// offered as context.
type Answer struct {
	ConversationID string
	Content        string
	Citations      []Citation
	Sources        []ChunkWithScore
}
