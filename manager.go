package searchmigrate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/GoCodeAlone/searchmigrate/index"
	"github.com/GoCodeAlone/searchmigrate/lock"
	"github.com/GoCodeAlone/searchmigrate/state"
)

const (
	// MigrationLockKey is the well-known key of the global migration lock.
	MigrationLockKey = "migrations"

	// DefaultStateIndexName is the default name of the state index.
	DefaultStateIndexName = "migrations"

	// DefaultLockAcquireTimeout bounds how long a run waits for the global
	// lock before reporting contention.
	DefaultLockAcquireTimeout = 30 * time.Minute

	// DefaultLockLeaseTimeout is the upper bound on a single run while
	// holding the global lock.
	DefaultLockLeaseTimeout = 30 * time.Minute

	createIndexLockPrefix  = "create-index:"
	createIndexLockTimeout = time.Minute

	// maxResumableAttempts bounds in-process retries of a resumable
	// migration within one run, counting the first attempt.
	maxResumableAttempts = 3
)

// Result is the aggregate outcome of a migration run.
type Result int

const (
	// Failed means the run stopped before every pending migration
	// completed. Inspect the state records for the failing migration's
	// error message.
	Failed Result = iota
	// Success means no pending work remained or all of it completed.
	Success
)

func (r Result) String() string {
	if r == Success {
		return "success"
	}
	return "failed"
}

// Options configures optional Manager collaborators and tunables. The zero
// value gives a manager with default timeouts, the default state index
// name, no metrics and no index backend.
type Options struct {
	// Backend enables EnsureStateIndex and DeleteStateIndex.
	Backend index.Backend
	// IndexName is the state index name. Defaults to
	// DefaultStateIndexName.
	IndexName string
	// Metrics receives run and per-migration observations when non-nil.
	Metrics *Collector
	// AcquireTimeout and LeaseTimeout govern the global migration lock.
	AcquireTimeout time.Duration
	LeaseTimeout   time.Duration
	// RetryDelay is the pause between attempts of a resumable migration.
	// Zero means no pause.
	RetryDelay time.Duration
}

// Manager registers migrations, computes their status against the state
// index and executes pending ones sequentially under the global migration
// lock.
type Manager struct {
	repo    state.Repository
	locker  lock.Provider
	backend index.Backend
	logger  *slog.Logger
	metrics *Collector

	indexName      string
	acquireTimeout time.Duration
	leaseTimeout   time.Duration
	retryDelay     time.Duration

	mu         sync.Mutex
	migrations []Migration
	frozen     bool

	now func() time.Time
}

// NewManager creates a Manager with default options.
func NewManager(repo state.Repository, locker lock.Provider, logger *slog.Logger) *Manager {
	return NewManagerWithOptions(repo, locker, logger, Options{})
}

// NewManagerWithOptions creates a Manager with the given options.
func NewManagerWithOptions(repo state.Repository, locker lock.Provider, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.IndexName == "" {
		opts.IndexName = DefaultStateIndexName
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultLockAcquireTimeout
	}
	if opts.LeaseTimeout <= 0 {
		opts.LeaseTimeout = DefaultLockLeaseTimeout
	}

	return &Manager{
		repo:           repo,
		locker:         locker,
		backend:        opts.Backend,
		logger:         logger.With("component", "migration.manager"),
		metrics:        opts.Metrics,
		indexName:      opts.IndexName,
		acquireTimeout: opts.AcquireTimeout,
		leaseTimeout:   opts.LeaseTimeout,
		retryDelay:     opts.RetryDelay,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Register appends migrations to the registered list. Registration order
// matters only for tie-breaking in execution order. Registering after the
// first run has started is a configuration error.
func (m *Manager) Register(migrations ...Migration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return ErrRegistrationFrozen
	}

	for _, mig := range migrations {
		if mig == nil {
			return ErrNilMigration
		}
		if !mig.MigrationType().Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidMigrationType, mig.MigrationType())
		}
		if !ignored(mig) {
			id := MigrationID(mig)
			for _, existing := range m.migrations {
				if !ignored(existing) && MigrationID(existing) == id {
					return fmt.Errorf("%w: %q", ErrDuplicateMigration, id)
				}
			}
		}
		m.migrations = append(m.migrations, mig)
	}
	return nil
}

// activeMigrations returns the registered migrations with ignored ones
// filtered out, preserving registration order.
func (m *Manager) activeMigrations() []Migration {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]Migration, 0, len(m.migrations))
	for _, mig := range m.migrations {
		if !ignored(mig) {
			active = append(active, mig)
		}
	}
	return active
}

func (m *Manager) freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
}

// GetMigrationStatus computes the current Status. On the very first query
// of a fresh installation (no state records at all) it writes the
// bootstrap record marking every registered versioned migration as already
// satisfied, then recomputes. It never takes the global lock.
func (m *Manager) GetMigrationStatus(ctx context.Context) (Status, error) {
	active := m.activeMigrations()

	records, err := m.repo.GetAll(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load migration state: %w", err)
	}

	if len(records) == 0 {
		records, err = m.bootstrap(ctx, active)
		if err != nil {
			return Status{}, err
		}
	}

	status := computeStatus(active, records)
	if m.metrics != nil {
		m.metrics.SetCurrentVersion(status.CurrentVersion)
	}
	return status, nil
}

// bootstrap records the highest registered version as already completed on
// a fresh installation, so upgrade-style migrations designed for existing
// deployments never run there. Repeatable migrations are unaffected.
//
// Two processes may race here; the write is an upsert keyed by the version
// string, so duplicate writes collapse into one record.
func (m *Manager) bootstrap(ctx context.Context, active []Migration) ([]state.MigrationState, error) {
	maxV, found := maxRegisteredVersion(active)
	if !found {
		return nil, nil
	}

	now := m.now()
	rec := state.MigrationState{
		ID:            strconv.Itoa(maxV),
		Version:       maxV,
		MigrationType: state.Versioned,
		StartedUTC:    now,
		CompletedUTC:  &now,
	}
	if err := m.repo.Add(ctx, rec); err != nil {
		return nil, fmt.Errorf("write bootstrap record: %w", err)
	}
	if err := m.repo.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("refresh state index: %w", err)
	}

	m.logger.Info("fresh installation bootstrapped", "version", maxV)

	records, err := m.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load migration state: %w", err)
	}
	return records, nil
}

// RunMigrations executes every pending migration sequentially under the
// global migration lock. It returns Success when nothing was pending or
// everything completed, and Failed otherwise; the error carries the
// detail. A migration failure stops the run, leaving later pending
// migrations untouched.
func (m *Manager) RunMigrations(ctx context.Context) (Result, error) {
	m.freeze()

	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return Failed, err
	}
	if !status.NeedsMigration {
		m.logger.Info("no migrations pending", "currentVersion", status.CurrentVersion)
		return Success, nil
	}

	m.logger.Info("acquiring migration lock", "pending", len(status.Pending))

	runStart := m.now()
	var workErr error
	acquired, lockErr := m.locker.TryUsing(ctx, MigrationLockKey, func(ctx context.Context) error {
		workErr = m.runPending(ctx)
		return workErr
	}, m.acquireTimeout, m.leaseTimeout)

	var runErr error
	switch {
	case !acquired && lockErr != nil:
		runErr = fmt.Errorf("acquire migration lock: %w", lockErr)
	case !acquired:
		runErr = fmt.Errorf("%w after %s", ErrLockNotAcquired, m.acquireTimeout)
	case workErr != nil:
		runErr = workErr
	case lockErr != nil:
		runErr = lockErr
	}

	result := Success
	if runErr != nil {
		result = Failed
	}
	if m.metrics != nil {
		m.metrics.ObserveRun(result, m.now().Sub(runStart))
	}
	if runErr != nil {
		m.logger.Error("migration run failed", "error", runErr)
		return Failed, runErr
	}

	m.logger.Info("migration run completed", "duration", m.now().Sub(runStart))
	return Success, nil
}

// runPending recomputes status with the lock held (another process may
// have advanced it since the pre-lock check) and executes what remains.
func (m *Manager) runPending(ctx context.Context) error {
	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, mig := range status.Pending {
		if err := m.runOne(ctx, mig); err != nil {
			return err
		}
	}
	return nil
}

// runOne performs a single migration attempt cycle: write the start
// record, invoke the migration (with in-process retries when resumable),
// then rewrite the record with the outcome and refresh the index so the
// next status computation observes it.
func (m *Manager) runOne(ctx context.Context, mig Migration) error {
	id := MigrationID(mig)
	typ := mig.MigrationType()
	version, _ := mig.Version()
	logger := m.logger.With("migration", id, "type", typ.String())

	rec := state.MigrationState{
		ID:            id,
		Version:       version,
		MigrationType: typ,
		StartedUTC:    m.now(),
	}
	if err := m.repo.Add(ctx, rec); err != nil {
		return fmt.Errorf("record start of migration %q: %w", id, err)
	}

	logger.Info("migration started", "version", version)

	attempts := 1
	if typ == VersionedAndResumable {
		attempts = maxResumableAttempts
	}
	runErr := m.attempt(ctx, logger, mig, attempts)
	elapsed := m.now().Sub(rec.StartedUTC)

	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
		rec.CompletedUTC = nil
		if err := m.repo.Add(ctx, rec); err != nil {
			return fmt.Errorf("record failure of migration %q: %w", id, err)
		}
		if err := m.repo.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh state index: %w", err)
		}

		logger.Error("migration failed", "error", runErr, "duration", elapsed)
		if m.metrics != nil {
			m.metrics.ObserveMigration(typ, Failed, elapsed)
		}
		return fmt.Errorf("migration %q: %w", id, runErr)
	}

	completed := m.now()
	rec.CompletedUTC = &completed
	rec.ErrorMessage = ""
	if err := m.repo.Add(ctx, rec); err != nil {
		return fmt.Errorf("record completion of migration %q: %w", id, err)
	}
	if err := m.repo.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh state index: %w", err)
	}

	logger.Info("migration completed", "version", version, "duration", elapsed)
	if m.metrics != nil {
		m.metrics.ObserveMigration(typ, Success, elapsed)
	}
	return nil
}

// attempt invokes the migration up to maxAttempts times in-process. The
// attempt counter is deliberately not persisted; every run starts afresh.
func (m *Manager) attempt(ctx context.Context, logger *slog.Logger, mig Migration, maxAttempts int) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.retryDelay), uint64(maxAttempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := mig.Run(ctx)
		if err != nil && attempt < maxAttempts {
			logger.Warn("migration attempt failed, retrying",
				"attempt", attempt,
				"maxAttempts", maxAttempts,
				"error", err)
		}
		return err
	}, bo)
}

// EnsureStateIndex creates the state index when absent, gated by a lock
// keyed on the index name so concurrent bootstrapping processes do not
// race the creation.
func (m *Manager) EnsureStateIndex(ctx context.Context) error {
	if m.backend == nil {
		return ErrNoBackend
	}

	key := createIndexLockPrefix + m.indexName
	acquired, err := m.locker.TryUsing(ctx, key, func(ctx context.Context) error {
		return m.backend.CreateIndex(ctx, m.indexName, index.Migrations())
	}, createIndexLockTimeout, createIndexLockTimeout)
	if err != nil {
		return fmt.Errorf("create state index %q: %w", m.indexName, err)
	}
	if !acquired {
		return fmt.Errorf("%w for %q", ErrLockNotAcquired, key)
	}
	return nil
}

// DeleteStateIndex deletes the state index, and with it every migration
// record. Intended for teardown and operator data-fix flows.
func (m *Manager) DeleteStateIndex(ctx context.Context) error {
	if m.backend == nil {
		return ErrNoBackend
	}
	if err := m.backend.DeleteIndex(ctx, m.indexName); err != nil {
		return fmt.Errorf("delete state index %q: %w", m.indexName, err)
	}
	return nil
}
