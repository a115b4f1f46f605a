package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driving"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// answerSystemPrompt instructs the model to ground every claim in the
// supplied chunks and to cite them by id.
const answerSystemPrompt = `You are a careful assistant answering questions about the user's personal files.
Answer ONLY from the provided context chunks. When you state a fact taken from a chunk, cite it with the chunk id in square brackets, e.g. [42].
If the context does not contain the answer, say so plainly. Never invent citations.`

// noContextAnswer is returned when retrieval finds nothing usable.
const noContextAnswer = "I could not find anything in your indexed files relevant to that question."

// citationPattern matches [N] markers in generated prose.
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// snippetLength bounds citation content snippets.
const snippetLength = 200

// maxHistoryTurns bounds how much conversation history is replayed.
const maxHistoryTurns = 10

// AnswerService produces grounded, cited answers.
type AnswerService struct {
	search        driving.SearchService
	generator     driven.GenerationService
	conversations driven.ConversationStore
	configStore   driven.ConfigStore
}

// NewAnswerService creates a new answer service.
func NewAnswerService(
	search driving.SearchService,
	generator driven.GenerationService,
	conversations driven.ConversationStore,
	configStore driven.ConfigStore,
) *AnswerService {
	return &AnswerService{
		search:        search,
		generator:     generator,
		conversations: conversations,
		configStore:   configStore,
	}
}

// QueryWithSources retrieves context for the question, asks the model
// and resolves its citation markers. maxChunks overrides the configured
// context budget when positive.
func (s *AnswerService) QueryWithSources(ctx context.Context, question, conversationID string, documentIDs []string, maxChunks int) (*domain.Answer, error) {
	logger.Section("Question Answering")

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question: %w", domain.ErrQueryRejected)
	}
	if s.generator == nil {
		return nil, fmt.Errorf("no generation service configured")
	}

	settings, err := s.configStore.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	conversation, history, err := s.resumeConversation(ctx, question, conversationID)
	if err != nil {
		return nil, err
	}

	if maxChunks <= 0 {
		maxChunks = settings.MaxContextChunks
	}

	// With per-document dedupe on, over-fetch so discarding a document's
	// lesser chunks can still fill the context budget.
	retrieveLimit := maxChunks
	if settings.DedupeContextByDocument {
		retrieveLimit = maxChunks * 3
	}

	sources, err := s.search.HybridSearch(ctx, question, retrieveLimit, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	if settings.DedupeContextByDocument {
		sources = dedupeByDocument(sources, maxChunks)
	}
	logger.Debug("Retrieved %d context chunks", len(sources))

	answer := &domain.Answer{
		ConversationID: conversation.ID,
		Sources:        sources,
	}

	if len(sources) == 0 {
		answer.Content = noContextAnswer
	} else {
		contextChunks := make([]driven.ContextChunk, len(sources))
		for i, src := range sources {
			contextChunks[i] = driven.ContextChunk{
				ID:        src.Chunk.ID,
				Content:   src.Chunk.Content,
				Source:    src.DocumentTitle,
				Page:      src.Chunk.PageNumber,
				Timestamp: src.Chunk.TimestampStart,
			}
		}

		resp, err := s.generator.Generate(ctx, driven.GenerateRequest{
			Prompt:       question,
			SystemPrompt: answerSystemPrompt,
			Context:      contextChunks,
			History:      history,
		})
		if err != nil {
			return nil, fmt.Errorf("generating answer: %w", err)
		}

		answer.Content = resp.Content
		answer.Citations = resolveCitations(resp.Content, sources)
		logger.Debug("Answer carries %d citations", len(answer.Citations))
	}

	if err := s.persistExchange(ctx, conversation.ID, question, answer.Content); err != nil {
		// The answer is already produced; losing history is worth a
		// warning, not a failure.
		logger.Warn("Persisting conversation %s: %v", conversation.ID, err)
	}

	return answer, nil
}

// resumeConversation loads an existing conversation and its history, or
// starts a fresh one titled after the question.
func (s *AnswerService) resumeConversation(ctx context.Context, question, conversationID string) (*domain.Conversation, []driven.ConversationTurn, error) {
	if conversationID == "" {
		title := question
		if len(title) > 80 {
			title = title[:80]
		}
		conversation, err := s.conversations.CreateConversation(ctx, title)
		if err != nil {
			return nil, nil, fmt.Errorf("creating conversation: %w", err)
		}
		return conversation, nil, nil
	}

	conversation, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("resuming conversation %s: %w", conversationID, err)
	}

	messages, err := s.conversations.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading conversation history: %w", err)
	}

	if len(messages) > maxHistoryTurns {
		messages = messages[len(messages)-maxHistoryTurns:]
	}

	history := make([]driven.ConversationTurn, len(messages))
	for i, msg := range messages {
		history[i] = driven.ConversationTurn{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return conversation, history, nil
}

// persistExchange records the question and answer.
func (s *AnswerService) persistExchange(ctx context.Context, conversationID, question, answer string) error {
	if _, err := s.conversations.AddMessage(ctx, conversationID, domain.RoleUser, question); err != nil {
		return err
	}
	if _, err := s.conversations.AddMessage(ctx, conversationID, domain.RoleAssistant, answer); err != nil {
		return err
	}
	return nil
}

// dedupeByDocument keeps each document's strongest chunk. Fused order
// is best-first, so the first chunk seen per document wins.
func dedupeByDocument(sources []domain.ChunkWithScore, limit int) []domain.ChunkWithScore {
	seen := make(map[string]bool, len(sources))
	deduped := make([]domain.ChunkWithScore, 0, len(sources))
	for _, src := range sources {
		if seen[src.Chunk.DocumentID] {
			continue
		}
		seen[src.Chunk.DocumentID] = true
		deduped = append(deduped, src)
		if len(deduped) == limit {
			break
		}
	}
	return deduped
}

// resolveCitations maps [N] markers in the generated prose back to the
// context chunks. Markers that do not name an offered chunk are
// dropped, and each chunk is cited at most once.
func resolveCitations(content string, sources []domain.ChunkWithScore) []domain.Citation {
	byID := make(map[int64]domain.ChunkWithScore, len(sources))
	for _, src := range sources {
		byID[src.Chunk.ID] = src
	}

	var citations []domain.Citation
	seen := make(map[int64]bool)

	for _, match := range citationPattern.FindAllStringSubmatch(content, -1) {
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}

		src, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true

		citations = append(citations, domain.Citation{
			ChunkID:        src.Chunk.ID,
			DocumentID:     src.Chunk.DocumentID,
			DocumentTitle:  src.DocumentTitle,
			FilePath:       src.FilePath,
			ContentSnippet: snippet(src.Chunk.Content),
			PageNumber:     src.Chunk.PageNumber,
			Timestamp:      src.Chunk.TimestampStart,
			RelevanceScore: src.Score,
		})
	}
	return citations
}

// snippet truncates chunk content for display, on a rune boundary.
func snippet(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= snippetLength {
		return content
	}
	return strings.TrimSpace(string(runes[:snippetLength])) + "..."
}
