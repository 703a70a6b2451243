// Package sync provides the contract between a run and the component that
// materializes the driver repository on disk.
package sync

import "context"

// Synchronizer fetches the driver repository into a local directory.
//
// The synchronizer is not thread-safe. Callers should handle concurrency.
type Synchronizer interface {
	// Execute fetches the repository. Any previous content of the target
	// directory is discarded first.
	//
	// Returns an error if synchronization fails.
	Execute(ctx context.Context) error

	// Close removes the local copy. It must be called once a successfully
	// fetched copy is no longer needed.
	Close(ctx context.Context) error

	// Path returns the directory the repository is fetched into.
	Path() string
}
