// memory based implementation for testing purposes
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/librecur/storage"
)

// Store implements storage.Store interface using an in-memory map
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*storage.SnapshotRecord
	now     func() time.Time
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		records: make(map[uuid.UUID]*storage.SnapshotRecord),
		now:     time.Now,
	}
}

// Records are copied on the way in and out so callers cannot change stored
// state behind the lock.
func clone(rec *storage.SnapshotRecord) *storage.SnapshotRecord {
	cp := *rec
	return &cp
}

func (s *Store) Save(ctx context.Context, rec *storage.SnapshotRecord) error {
	if err := ctx.Err(); err != nil {
		return &storage.Error{Type: storage.TypeUnavailable, Message: "save cancelled", Err: err}
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Touch(s.records[rec.ID], s.now())
	s.records[rec.ID] = clone(rec)
	return nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*storage.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "load cancelled", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.TypeNotFound,
			Message: "snapshot " + id.String() + " not found",
		}
	}
	return clone(rec), nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return &storage.Error{
			Type:    storage.TypeNotFound,
			Message: "snapshot " + id.String() + " not found",
		}
	}
	delete(s.records, id)
	return nil
}

func (s *Store) List(_ context.Context) ([]*storage.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*storage.SnapshotRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, clone(rec))
	}
	slices.SortFunc(records, func(a, b *storage.SnapshotRecord) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return records, nil
}
