package searchmigrate

import (
	"sort"

	"github.com/GoCodeAlone/searchmigrate/state"
)

// Status describes the outstanding migration work at a point in time.
type Status struct {
	// Pending holds the migrations requiring execution, in the order the
	// manager will run them: versioned kinds first, ascending by version,
	// then repeatables in registration order.
	Pending []Migration
	// NeedsMigration is true when Pending is non-empty.
	NeedsMigration bool
	// CurrentVersion is the highest version among successfully completed
	// versioned state records, or 0 when there are none.
	CurrentVersion int
}

// computeStatus derives the Status for the given migrations against the
// persisted records. Callers pass the registered list with ignored
// migrations already filtered out.
func computeStatus(migrations []Migration, records []state.MigrationState) Status {
	byID := make(map[string]state.MigrationState, len(records))
	current := 0
	for _, rec := range records {
		byID[rec.ID] = rec
		if rec.MigrationType.IsVersioned() && rec.Completed() && rec.Version > current {
			current = rec.Version
		}
	}

	var pending []Migration
	for _, m := range migrations {
		if isPending(m, byID) {
			pending = append(pending, m)
		}
	}

	// Versioned kinds run first, ascending by version. The stable sort
	// keeps registration order for equal versions and for repeatables.
	sort.SliceStable(pending, func(i, j int) bool {
		vi, versionedI := orderKey(pending[i])
		vj, versionedJ := orderKey(pending[j])
		if versionedI != versionedJ {
			return versionedI
		}
		if versionedI {
			return vi < vj
		}
		return false
	})

	return Status{
		Pending:        pending,
		NeedsMigration: len(pending) > 0,
		CurrentVersion: current,
	}
}

func orderKey(m Migration) (version int, versioned bool) {
	if !m.MigrationType().IsVersioned() {
		return 0, false
	}
	v, _ := m.Version()
	return v, true
}

// isPending decides whether m still requires execution. A versioned
// migration is pending until a record with its identity completes; a
// failed attempt leaves it pending, which is how retry across runs
// happens. A repeatable migration is pending while its desired version is
// ahead of the recorded one.
func isPending(m Migration, byID map[string]state.MigrationState) bool {
	rec, exists := byID[MigrationID(m)]

	if m.MigrationType().IsVersioned() {
		return !exists || !rec.Completed()
	}

	desired, ok := m.Version()
	if !ok {
		// No desired version yet; not runnable even when a record exists.
		return false
	}
	return !exists || rec.Version < desired
}

// maxRegisteredVersion returns the highest version among versioned
// migrations, and whether any exist.
func maxRegisteredVersion(migrations []Migration) (int, bool) {
	maxV, found := 0, false
	for _, m := range migrations {
		if !m.MigrationType().IsVersioned() {
			continue
		}
		v, ok := m.Version()
		if !ok {
			continue
		}
		found = true
		if v > maxV {
			maxV = v
		}
	}
	return maxV, found
}
