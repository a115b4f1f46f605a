package services

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// --- Mock implementations shared across the package tests ---

// mockDocStore implements driven.DocumentStore in memory.
type mockDocStore struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	chunks    map[int64]domain.Chunk
	nextChunk int64

	saveErr   error
	statusErr error
	getErr    error
}

func newMockDocStore() *mockDocStore {
	return &mockDocStore{
		docs:      make(map[string]*domain.Document),
		chunks:    make(map[int64]domain.Chunk),
		nextChunk: 1,
	}
}

func (m *mockDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *mockDocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *mockDocStore) GetDocumentByPath(_ context.Context, path string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.FilePath == path {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocStore) GetDocumentByHash(_ context.Context, hash string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.FileHash == hash {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocStore) UpdateDocumentStatus(_ context.Context, id string, status domain.DocumentStatus, errorMessage string) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	return nil
}

func (m *mockDocStore) UpdateDocumentPath(_ context.Context, id, path, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.FilePath = path
	doc.Title = title
	return nil
}

func (m *mockDocStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]domain.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *mockDocStore) CountDocuments(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *mockDocStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	for cid, c := range m.chunks {
		if c.DocumentID == id {
			delete(m.chunks, cid)
		}
	}
	return nil
}

func (m *mockDocStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks []domain.Chunk
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			chunks = append(chunks, c)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (m *mockDocStore) GetChunksByIDs(_ context.Context, ids []int64) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunks := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

func (m *mockDocStore) Stats(_ context.Context) (domain.IngestionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := domain.IngestionStats{
		TotalDocuments: len(m.docs),
		TotalChunks:    len(m.chunks),
	}
	for _, doc := range m.docs {
		switch doc.Status {
		case domain.StatusCompleted:
			stats.CompletedDocuments++
		case domain.StatusFailed:
			stats.FailedDocuments++
		default:
			stats.PendingDocuments++
		}
	}
	return stats, nil
}

// addChunk seeds a chunk directly, bypassing the pipeline.
func (m *mockDocStore) addChunk(chunk domain.Chunk) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextChunk
	m.nextChunk++
	chunk.ID = id
	m.chunks[id] = chunk
	return id
}

// mockIndexWriter implements driven.IndexWriter and records commits
// into the doc store so hydration works.
type mockIndexWriter struct {
	docStore  *mockDocStore
	commitErr error
	commits   int
}

func (m *mockIndexWriter) Commit(_ context.Context, documentID string, chunks []domain.Chunk) ([]int64, error) {
	if m.commitErr != nil {
		return nil, m.commitErr
	}
	m.commits++
	m.docStore.mu.Lock()
	for cid, c := range m.docStore.chunks {
		if c.DocumentID == documentID {
			delete(m.docStore.chunks, cid)
		}
	}
	m.docStore.mu.Unlock()

	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		c.DocumentID = documentID
		ids[i] = m.docStore.addChunk(c)
	}
	return ids, nil
}

func (m *mockIndexWriter) Delete(_ context.Context, documentID string) error {
	m.docStore.mu.Lock()
	defer m.docStore.mu.Unlock()
	for cid, c := range m.docStore.chunks {
		if c.DocumentID == documentID {
			delete(m.docStore.chunks, cid)
		}
	}
	return nil
}

// mockSearchEngine implements driven.SearchEngine.
type mockSearchEngine struct {
	hits      []driven.SearchHit
	searchErr error
	calls     int
}

func (m *mockSearchEngine) Search(_ context.Context, _ string, limit int, _ []string) ([]driven.SearchHit, error) {
	m.calls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit < len(m.hits) {
		return m.hits[:limit], nil
	}
	return m.hits, nil
}

// mockVectorIndex implements driven.VectorIndex.
type mockVectorIndex struct {
	hits      []driven.VectorHit
	searchErr error
	calls     int
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, k int, _ []string) ([]driven.VectorHit, error) {
	m.calls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

// mockEmbedder implements driven.EmbeddingService.
type mockEmbedder struct {
	embedding []float32
	embedErr  error
	batches   int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	m.batches++
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.embedding
	}
	return result, nil
}

func (m *mockEmbedder) Dimensions() int { return len(m.embedding) }

func (m *mockEmbedder) ModelName() string { return "mock-embed" }

func (m *mockEmbedder) Close() error { return nil }

// mockConfigStore implements driven.ConfigStore.
type mockConfigStore struct {
	settings domain.Settings
	loadErr  error
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{settings: domain.DefaultSettings()}
}

func (m *mockConfigStore) Load() (domain.Settings, error) {
	if m.loadErr != nil {
		return domain.Settings{}, m.loadErr
	}
	return m.settings, nil
}

func (m *mockConfigStore) Save(settings domain.Settings) error {
	m.settings = settings
	return nil
}

// mockExtractor implements driven.Extractor and the registry for one
// file type set.
type mockExtractor struct {
	mu         sync.Mutex
	content    domain.ExtractedContent
	extractErr error
	calls      int

	// onExtract, when non-nil, runs at the start of each Extract call.
	// Lets tests observe overlap or trigger cancellation mid-stage.
	onExtract func()
	// progressSteps, when positive, invokes the progress callback that
	// many times with increasing fractions, stopping on its error.
	progressSteps int
}

func (m *mockExtractor) Extract(_ context.Context, _ string, progress driven.ProgressFunc) (domain.ExtractedContent, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.onExtract != nil {
		m.onExtract()
	}
	if progress != nil {
		for i := 1; i <= m.progressSteps; i++ {
			if err := progress(float64(i) / float64(m.progressSteps)); err != nil {
				return domain.ExtractedContent{}, err
			}
		}
	}
	if m.extractErr != nil {
		return domain.ExtractedContent{}, m.extractErr
	}
	return m.content, nil
}

func (m *mockExtractor) Supports(_ domain.FileType) bool { return true }

type mockRegistry struct {
	extractor *mockExtractor
	forErr    error
}

func (m *mockRegistry) ForType(_ domain.FileType) (driven.Extractor, error) {
	if m.forErr != nil {
		return nil, m.forErr
	}
	return m.extractor, nil
}

// mockChunker implements driven.Chunker: one chunk per line.
type mockChunker struct {
	chunkErr error
	// blockUntil, when non-nil, is closed by the test to release the
	// chunker. Lets tests cancel mid-pipeline deterministically.
	blockUntil chan struct{}
}

func (m *mockChunker) Chunk(ctx context.Context, documentID string, content domain.ExtractedContent) ([]domain.Chunk, error) {
	if m.blockUntil != nil {
		select {
		case <-m.blockUntil:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.chunkErr != nil {
		return nil, m.chunkErr
	}
	var chunks []domain.Chunk
	for i, line := range splitLines(content.Text) {
		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			Index:      i,
			Content:    line,
			TokenCount: len(line) / 4,
		})
	}
	return chunks, nil
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			if i > start {
				lines = append(lines, text[start:i])
			}
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// mockAdmission implements driven.AdmissionProvider.
type mockAdmission struct {
	err   error
	calls int
}

func (m *mockAdmission) Admit(_ context.Context) error {
	m.calls++
	return m.err
}

// mockGenerator implements driven.GenerationService.
type mockGenerator struct {
	response    string
	generateErr error
	lastRequest driven.GenerateRequest
}

func (m *mockGenerator) Generate(_ context.Context, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	m.lastRequest = req
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &driven.GenerateResponse{Content: m.response}, nil
}

func (m *mockGenerator) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return "", nil
}

func (m *mockGenerator) DescribeImage(_ context.Context, _ []byte, _ string) (string, error) {
	return "", nil
}

func (m *mockGenerator) Close() error { return nil }

// mockConversationStore implements driven.ConversationStore in memory.
type mockConversationStore struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	messages      map[string][]domain.Message
	nextID        int
}

func newMockConversationStore() *mockConversationStore {
	return &mockConversationStore{
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func (m *mockConversationStore) CreateConversation(_ context.Context, title string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	conv := &domain.Conversation{ID: strconv.Itoa(m.nextID), Title: title}
	m.conversations[conv.ID] = conv
	return conv, nil
}

func (m *mockConversationStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

func (m *mockConversationStore) AddMessage(_ context.Context, conversationID string, role domain.MessageRole, content string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[conversationID]; !ok {
		return nil, domain.ErrNotFound
	}
	msg := domain.Message{ConversationID: conversationID, Role: role, Content: content}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return &msg, nil
}

func (m *mockConversationStore) GetMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[conversationID], nil
}
