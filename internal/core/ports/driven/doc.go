// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore: document and chunk persistence
//   - IndexWriter: transactional dual-index (lexical + vector) commits
//   - SearchEngine: BM25 keyword search over chunks
//   - VectorIndex: cosine similarity search over chunk embeddings
//   - EmbeddingService: vector embedding generation
//   - Extractor: per-file-type content extraction
//   - Chunker: token-bounded chunking
//   - ConfigStore: settings persistence
//
// # Optional Interfaces
//
// These can be nil and the application degrades:
//
//   - GenerationService: answer generation, transcription, image
//     description. Without it, ask/ingest of media and scanned PDFs
//     fails with typed errors while text ingestion and search still work.
//   - ConversationStore: question/answer history. Without it, every
//     query starts a fresh conversation.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driven
