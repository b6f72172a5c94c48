package searchmigrate

import "errors"

var (
	// ErrNilMigration is returned when a nil migration is registered.
	ErrNilMigration = errors.New("nil migration")

	// ErrInvalidMigrationType is returned when a migration reports an
	// unknown type.
	ErrInvalidMigrationType = errors.New("invalid migration type")

	// ErrDuplicateMigration is returned when two registered migrations
	// resolve to the same identity.
	ErrDuplicateMigration = errors.New("duplicate migration identity")

	// ErrRegistrationFrozen is returned when Register is called after the
	// first run has started.
	ErrRegistrationFrozen = errors.New("migration registration is frozen")

	// ErrLockNotAcquired is returned when the global migration lock stayed
	// contended for the whole acquisition window.
	ErrLockNotAcquired = errors.New("migration lock not acquired")

	// ErrNoBackend is returned when an index operation is requested on a
	// manager constructed without a backend.
	ErrNoBackend = errors.New("no index backend configured")
)
