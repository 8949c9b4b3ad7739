package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/cyp0633/librecur/recur"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	mock.Mock
}

// Save implements the Store interface
func (m *MockStore) Save(ctx context.Context, rec *SnapshotRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// Load implements the Store interface
func (m *MockStore) Load(ctx context.Context, id uuid.UUID) (*SnapshotRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	rec := args.Get(0).(*SnapshotRecord)
	if rec == nil {
		return nil, args.Error(1)
	}
	return rec, args.Error(1)
}

// Delete implements the Store interface
func (m *MockStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// List implements the Store interface
func (m *MockStore) List(ctx context.Context) ([]*SnapshotRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SnapshotRecord), args.Error(1)
}

// --- Helper methods for creating test data ---

// NewMockRecord creates a record holding the snapshot of a fresh iterator for
// rule anchored at start. It panics on an invalid rule.
func NewMockRecord(name string, rule recur.Rule, start time.Time) *SnapshotRecord {
	it, err := recur.New(rule, recur.Anchor{Start: start})
	if err != nil {
		panic(err)
	}
	rec := NewRecord(name, it)
	rec.Created = start
	rec.Modified = start
	return rec
}

// ExpectLoad sets up Load to return rec for its ID
func (m *MockStore) ExpectLoad(rec *SnapshotRecord) *mock.Call {
	return m.On("Load", mock.Anything, rec.ID).Return(rec, nil)
}

// ExpectMissing sets up Load to fail with a not-found error for id
func (m *MockStore) ExpectMissing(id uuid.UUID) *mock.Call {
	return m.On("Load", mock.Anything, id).Return(nil, &Error{Type: TypeNotFound, Message: "snapshot " + id.String() + " not found"})
}
