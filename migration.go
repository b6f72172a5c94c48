// Package searchmigrate coordinates schema migrations for a
// document-oriented search-index backend. Applications register
// migrations with a Manager, which tracks each one's state in a dedicated
// index and executes pending work sequentially under a global lock, so a
// deployment converges to the current schema version exactly once even
// across concurrent processes and restarts.
package searchmigrate

import (
	"context"
	"reflect"
	"strconv"

	"github.com/GoCodeAlone/searchmigrate/state"
)

// MigrationType classifies how a migration is identified and when it may
// run again.
type MigrationType = state.MigrationType

// Migration type tags, re-exported from the state package where they are
// part of the durable record vocabulary.
const (
	Versioned             = state.Versioned
	VersionedAndResumable = state.VersionedAndResumable
	Repeatable            = state.Repeatable
)

// Migration is a unit of application-defined work that transforms stored
// data or index structure. The manager never inspects a migration beyond
// this contract.
type Migration interface {
	// MigrationType classifies the migration.
	MigrationType() MigrationType
	// Version returns the migration's version; ok is false when none is
	// set. A versioned migration without a version is ignored. For a
	// repeatable migration the version is the current desired one, and
	// none means "do not run yet".
	Version() (int, bool)
	// Run performs the work. It may be invoked again after a failure,
	// depending on the migration type.
	Run(ctx context.Context) error
}

// MigrationID derives the durable identity of a migration: the decimal
// version string for versioned kinds, the implementation's fully-qualified
// type name for repeatable ones.
func MigrationID(m Migration) string {
	if m.MigrationType().IsVersioned() {
		v, _ := m.Version()
		return strconv.Itoa(v)
	}

	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// ignored reports whether m is dropped from status computation: a
// versioned migration with no version set.
func ignored(m Migration) bool {
	if !m.MigrationType().IsVersioned() {
		return false
	}
	_, ok := m.Version()
	return !ok
}
