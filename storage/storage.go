package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/librecur/recur"
)

// Store persists iterator snapshots. Implementations return *Error values so
// callers can match them with errors.Is against ErrNotFound and friends.
type Store interface {
	// Save creates the record, or replaces the stored one with the same ID.
	// Created is kept from the first save; Modified is set on every save.
	Save(ctx context.Context, rec *SnapshotRecord) error
	// Load returns the record with the given ID.
	Load(ctx context.Context, id uuid.UUID) (*SnapshotRecord, error)
	// Delete removes the record with the given ID.
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns every record, oldest first.
	List(ctx context.Context) ([]*SnapshotRecord, error)
}

// SnapshotRecord is a stored iterator snapshot.
type SnapshotRecord struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name,omitempty"`
	Snapshot recur.Snapshot `json:"snapshot"`
	Created  time.Time      `json:"created"`
	Modified time.Time      `json:"modified"`
}

// NewRecord captures the state of it under a fresh random ID.
func NewRecord(name string, it *recur.Iterator) *SnapshotRecord {
	return &SnapshotRecord{
		ID:       uuid.New(),
		Name:     name,
		Snapshot: it.Snapshot(),
	}
}

// Iterator restores the iterator the record was taken from.
func (r *SnapshotRecord) Iterator(opts ...recur.Option) (*recur.Iterator, error) {
	return recur.Restore(r.Snapshot, opts...)
}

// Validate checks that a record can be stored.
func (r *SnapshotRecord) Validate() error {
	if r == nil {
		return &Error{Type: TypeInvalidInput, Message: "nil record"}
	}
	if r.ID == uuid.Nil {
		return &Error{Type: TypeInvalidInput, Message: "record has no ID"}
	}
	if r.Snapshot.Start == "" || r.Snapshot.Governor == "" {
		return &Error{Type: TypeInvalidInput, Message: "record " + r.ID.String() + " holds an empty snapshot"}
	}
	return nil
}

// Touch stamps a record that is about to be saved. prev is the stored
// version, if any.
func (r *SnapshotRecord) Touch(prev *SnapshotRecord, now time.Time) {
	switch {
	case prev != nil:
		r.Created = prev.Created
	case r.Created.IsZero():
		r.Created = now
	}
	r.Modified = now
}
