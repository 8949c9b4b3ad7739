package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/librecur/recur"
	"github.com/cyp0633/librecur/storage"
)

func testRecord(name string, start time.Time) *storage.SnapshotRecord {
	return storage.NewMockRecord(name, recur.Rule{Freq: recur.Weekly, Count: 3}, start)
}

func TestStore_SaveLoad(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	rec := testRecord("weekly", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	rec.Created = time.Time{}

	// Test loading non-existent record
	_, err := store.Load(ctx, rec.ID)
	if err == nil {
		t.Error("expected error loading non-existent record")
	} else if err.(*storage.Error).Type != storage.TypeNotFound {
		t.Errorf("expected TypeNotFound, got %v", err)
	}

	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("unexpected error saving record: %v", err)
	}
	if !rec.Created.Equal(now) || !rec.Modified.Equal(now) {
		t.Errorf("expected timestamps %v, got created %v modified %v", now, rec.Created, rec.Modified)
	}

	got, err := store.Load(ctx, rec.ID)
	if err != nil {
		t.Fatalf("unexpected error loading record: %v", err)
	}
	if got.Name != "weekly" || got.Snapshot.Start != rec.Snapshot.Start {
		t.Errorf("got record %+v, want %+v", got, rec)
	}

	// Changing the returned copy leaves the stored record alone
	got.Name = "changed"
	again, _ := store.Load(ctx, rec.ID)
	if again.Name != "weekly" {
		t.Errorf("stored record changed through a loaded copy: %q", again.Name)
	}

	// Saving again keeps Created and moves Modified
	later := now.Add(time.Hour)
	store.now = func() time.Time { return later }
	rec.Name = "renamed"
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("unexpected error updating record: %v", err)
	}
	got, _ = store.Load(ctx, rec.ID)
	if got.Name != "renamed" || !got.Created.Equal(now) || !got.Modified.Equal(later) {
		t.Errorf("unexpected record after update: %+v", got)
	}
}

func TestStore_ResumeIterator(t *testing.T) {
	store := New()
	ctx := context.Background()

	it, err := recur.New(recur.Rule{Freq: recur.Daily, Count: 5}, recur.Anchor{Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := it.Next(); err != nil {
			t.Fatal(err)
		}
	}
	rec := storage.NewRecord("daily", it)
	if err := store.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	resumed, err := loaded.Iterator()
	if err != nil {
		t.Fatalf("unexpected error restoring iterator: %v", err)
	}

	var got []time.Time
	for {
		next, err := resumed.Next()
		if err != nil {
			t.Fatal(err)
		}
		v, ok := next.Get()
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := []time.Time{
		time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStore_Invalid(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Save(ctx, &storage.SnapshotRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a record without ID, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	rec := testRecord("cancelled", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	if err := store.Save(cancelled, rec); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := store.Load(cancelled, rec.ID); !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestStore_DeleteList(t *testing.T) {
	store := New()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i, name := range []string{"third", "first", "second"} {
		rec := testRecord(name, base)
		rec.Created = base.AddDate(0, 0, []int{3, 1, 2}[i])
		if err := store.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error listing records: %v", err)
	}
	var names []string
	for _, r := range records {
		names = append(names, r.Name)
	}
	if len(names) != 3 || names[0] != "first" || names[1] != "second" || names[2] != "third" {
		t.Errorf("got records %v, want oldest first", names)
	}

	if err := store.Delete(ctx, ids[0]); err != nil {
		t.Errorf("unexpected error deleting record: %v", err)
	}
	if err := store.Delete(ctx, ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := store.Load(ctx, ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	records, _ = store.List(ctx)
	if len(records) != 2 {
		t.Errorf("got %d records after delete, want 2", len(records))
	}
}
