package searchmigrate

import (
	"testing"
	"time"

	"github.com/GoCodeAlone/searchmigrate/state"
)

func failedRecord(id string, version int) state.MigrationState {
	return state.MigrationState{
		ID:            id,
		Version:       version,
		MigrationType: state.Versioned,
		StartedUTC:    time.Now().UTC(),
		ErrorMessage:  "Boom",
	}
}

func TestComputeStatusCurrentVersion(t *testing.T) {
	now := time.Now().UTC()
	repeatableDone := state.MigrationState{
		ID:            "example.Cleanup",
		Version:       7,
		MigrationType: state.Repeatable,
		StartedUTC:    now,
		CompletedUTC:  &now,
	}

	tests := []struct {
		name    string
		records []state.MigrationState
		want    int
	}{
		{"no records", nil, 0},
		{"single completed", []state.MigrationState{completedRecord("2", 2)}, 2},
		{"highest wins", []state.MigrationState{completedRecord("2", 2), completedRecord("5", 5)}, 5},
		{"failed attempts do not count", []state.MigrationState{completedRecord("2", 2), failedRecord("5", 5)}, 2},
		{"repeatable versions do not count", []state.MigrationState{repeatableDone}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := computeStatus(nil, tt.records)
			if status.CurrentVersion != tt.want {
				t.Errorf("current version = %d, want %d", status.CurrentVersion, tt.want)
			}
		})
	}
}

func TestComputeStatusPendingPredicate(t *testing.T) {
	v1 := 1

	tests := []struct {
		name      string
		migration Migration
		records   []state.MigrationState
		pending   bool
	}{
		{"versioned with no record", versionedAt(3), nil, true},
		{"versioned completed", versionedAt(3), []state.MigrationState{completedRecord("3", 3)}, false},
		{"versioned failed earlier", versionedAt(3), []state.MigrationState{failedRecord("3", 3)}, true},
		{"repeatable with no record", &reindexNotes{version: &v1}, nil, true},
		{"repeatable behind desired", &reindexNotes{version: &v1}, []state.MigrationState{{
			ID:            MigrationID(&reindexNotes{}),
			Version:       0,
			MigrationType: state.Repeatable,
		}}, true},
		{"repeatable at desired", &reindexNotes{version: &v1}, []state.MigrationState{{
			ID:            MigrationID(&reindexNotes{}),
			Version:       1,
			MigrationType: state.Repeatable,
		}}, false},
		// A repeatable that reports no version is never pending, even when
		// a record already exists.
		{"repeatable without version but with record", &reindexNotes{}, []state.MigrationState{{
			ID:            MigrationID(&reindexNotes{}),
			Version:       2,
			MigrationType: state.Repeatable,
		}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := computeStatus([]Migration{tt.migration}, tt.records)
			got := len(status.Pending) == 1
			if got != tt.pending {
				t.Errorf("pending = %v, want %v", got, tt.pending)
			}
			if status.NeedsMigration != tt.pending {
				t.Errorf("needsMigration = %v, want %v", status.NeedsMigration, tt.pending)
			}
		})
	}
}

func TestComputeStatusTieBreakByRegistration(t *testing.T) {
	a := versionedAt(2)
	b := &fakeVersioned{typ: VersionedAndResumable, version: 2, hasVersion: true}

	status := computeStatus([]Migration{b, a}, nil)
	if len(status.Pending) != 2 {
		t.Fatalf("expected two pending, got %d", len(status.Pending))
	}
	if status.Pending[0] != Migration(b) || status.Pending[1] != Migration(a) {
		t.Error("equal versions must keep registration order")
	}
}

func TestMaxRegisteredVersion(t *testing.T) {
	v0 := 9
	tests := []struct {
		name       string
		migrations []Migration
		want       int
		found      bool
	}{
		{"none", nil, 0, false},
		{"only repeatable", []Migration{&reindexNotes{version: &v0}}, 0, false},
		{"mixed", []Migration{versionedAt(2), versionedAt(5), &reindexNotes{version: &v0}}, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := maxRegisteredVersion(tt.migrations)
			if got != tt.want || found != tt.found {
				t.Errorf("maxRegisteredVersion = (%d, %v), want (%d, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}
