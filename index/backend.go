// Package index defines the contract the migration manager needs from the
// search-index subsystem, the descriptor for the migration state index, and
// Elasticsearch and in-memory implementations of the contract.
package index

import "context"

// Backend is the slice of the index subsystem the migration manager
// depends on. All operations are idempotent.
type Backend interface {
	// CreateIndex creates the named index with the given descriptor. It is
	// a no-op when the index already exists. After creation it verifies the
	// index health is yellow or green and fails otherwise.
	CreateIndex(ctx context.Context, name string, desc Descriptor) error
	// DeleteIndex deletes the named index. Deleting an absent index is not
	// an error.
	DeleteIndex(ctx context.Context, name string) error
	// IndexExists reports whether the named index exists.
	IndexExists(ctx context.Context, name string) (bool, error)
	// Refresh makes previously-written documents visible to the next read.
	Refresh(ctx context.Context, name string) error
}
