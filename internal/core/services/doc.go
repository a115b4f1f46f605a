// Package services implements the driving port interfaces.
// Services contain the core business logic: the ingestion pipeline
// state machine, hybrid retrieval with rank fusion, grounded question
// answering and trial admission. They orchestrate calls to driven
// ports (adapters) and are pure Go with no external dependencies
// beyond the ports they consume.
package services
