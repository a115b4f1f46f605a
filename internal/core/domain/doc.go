// Package domain defines the core business entities for Recall.
//
// This package is the innermost layer of the hexagonal architecture.
// It defines the fundamental types the rest of the system moves around:
//
//   - Document: an ingested file with metadata and lifecycle status
//   - Chunk: a token-bounded, searchable unit of a document
//   - ExtractedContent: normalised text with positional anchors
//   - Citation: a resolved reference from a generated answer to a chunk
//   - Settings: user configuration with defaults
//
// # Architectural Position
//
// Domain sits at the centre of the hexagon. All other packages depend on
// domain; domain depends on nothing but the standard library.
//
// # Import Rules
//
//   - Can Import: standard library only
//   - Cannot Import: any internal/ package, any external dependency
package domain
