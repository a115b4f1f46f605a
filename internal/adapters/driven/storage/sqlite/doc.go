// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: document and chunk persistence
//   - IndexWriter: transactional dual-index commits
//   - SearchEngine: BM25 keyword search via FTS5
//   - VectorIndex: cosine similarity search over stored embeddings
//   - ConversationStore: question/answer history
//
// Both indexes live in the same database file as the chunks, so a
// commit replaces a document's chunk set, its FTS entries and its
// embedding rows in one transaction. Until the commit lands, the
// previous chunk set stays searchable.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. FTS5 entries are maintained by triggers on the
// chunks table.
//
// # Data Location
//
// By default, the database is stored at ~/.recall/data/recall.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
