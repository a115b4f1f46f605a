// Package driving defines the interfaces through which the outside
// world drives the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// Core services implement them; driving adapters (the CLI, the folder
// watcher) call them.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package, driven ports
package driving
