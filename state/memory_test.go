package state

import (
	"context"
	"testing"
	"time"
)

func record(id string, version int) MigrationState {
	return MigrationState{
		ID:            id,
		Version:       version,
		MigrationType: Versioned,
		StartedUTC:    time.Now().UTC(),
	}
}

func TestMemoryRepositoryVisibilityAfterRefresh(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Add(ctx, record("1", 1)); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Not yet refreshed: invisible.
	got, err := repo.GetByID(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("record visible before refresh")
	}

	if err := repo.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got, err = repo.GetByID(ctx, "1")
	if err != nil {
		t.Fatalf("get after refresh: %v", err)
	}
	if got == nil || got.ID != "1" {
		t.Errorf("expected record 1 after refresh, got %+v", got)
	}
}

func TestMemoryRepositoryUpsert(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Add(ctx, record("1", 1)); err != nil {
		t.Fatalf("add: %v", err)
	}

	updated := record("1", 1)
	now := time.Now().UTC()
	updated.CompletedUTC = &now
	if err := repo.Add(ctx, updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("upsert must not duplicate, got %d records", len(all))
	}
	if !all[0].Completed() {
		t.Error("expected the rewritten record")
	}
}

func TestMemoryRepositoryGetAllOrdered(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, id := range []string{"3", "1", "2"} {
		if err := repo.Add(ctx, record(id, 0)); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := repo.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	want := []string{"1", "2", "3"}
	for i, rec := range all {
		if rec.ID != want[i] {
			t.Fatalf("expected order %v, got record %q at %d", want, rec.ID, i)
		}
	}
}

func TestMemoryRepositoryGetByIDAbsent(t *testing.T) {
	repo := NewMemoryRepository()

	got, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent record, got %+v", got)
	}
}
