package state

import "context"

// Repository persists migration state records to the state index.
// Implementations provide single-document upsert semantics keyed by ID; no
// transactions beyond that are assumed.
type Repository interface {
	// Add upserts a record by its ID.
	Add(ctx context.Context, st MigrationState) error
	// GetAll returns every record in the state index. The index is bounded
	// by the realistic number of migrations an application carries,
	// typically tens.
	GetAll(ctx context.Context) ([]MigrationState, error)
	// GetByID returns the record with the given ID, or nil when absent.
	GetByID(ctx context.Context, id string) (*MigrationState, error)
	// Refresh makes previously-written records visible to subsequent reads.
	Refresh(ctx context.Context) error
}
