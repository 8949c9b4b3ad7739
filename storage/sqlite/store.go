// Package sqlite stores snapshot records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cyp0633/librecur/recur"
	"github.com/cyp0633/librecur/storage"
)

const migration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	snapshot TEXT NOT NULL,
	created INTEGER NOT NULL,
	modified INTEGER NOT NULL
) STRICT;

CREATE INDEX IF NOT EXISTS snapshots_created_idx ON snapshots (created, id);
`

// Store implements storage.Store on a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenDB opens a SQLite database at the given path.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Open opens the database at path and creates the snapshots table if needed.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "cannot open " + path, Err: err}
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The schema is applied on every call.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(migration); err != nil {
		return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "error while migrating database", Err: err}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, rec *storage.SnapshotRecord) error {
	if err := ctx.Err(); err != nil {
		return &storage.Error{Type: storage.TypeUnavailable, Message: "save cancelled", Err: err}
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return &storage.Error{Type: storage.TypeInvalidInput, Message: "failed to encode snapshot", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("save", err)
	}
	defer tx.Rollback()

	var prev *storage.SnapshotRecord
	var created int64
	err = tx.QueryRowContext(ctx, "SELECT created FROM snapshots WHERE id = ?", rec.ID.String()).Scan(&created)
	switch {
	case err == nil:
		prev = &storage.SnapshotRecord{Created: fromUnix(created)}
	case !errors.Is(err, sql.ErrNoRows):
		return unavailable("save", err)
	}
	rec.Touch(prev, s.now())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, name, snapshot, created, modified) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, snapshot = excluded.snapshot, modified = excluded.modified`,
		rec.ID.String(), rec.Name, string(body), rec.Created.UnixNano(), rec.Modified.UnixNano())
	if err != nil {
		return unavailable("save", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("save", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*storage.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "load cancelled", Err: err}
	}
	row := s.db.QueryRowContext(ctx, "SELECT id, name, snapshot, created, modified FROM snapshots WHERE id = ?", id.String())
	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	return rec, err
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id.String())
	if err != nil {
		return unavailable("delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable("delete", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*storage.SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, snapshot, created, modified FROM snapshots ORDER BY created ASC, id ASC")
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	records := []*storage.SnapshotRecord{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*storage.SnapshotRecord, error) {
	var (
		id, name, body    string
		created, modified int64
	)
	if err := row.Scan(&id, &name, &body, &created, &modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, unavailable("read", err)
	}

	rec := &storage.SnapshotRecord{
		Name:     name,
		Created:  fromUnix(created),
		Modified: fromUnix(modified),
	}
	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, &storage.Error{Type: storage.TypeCorrupt, Message: "bad snapshot id " + id, Err: err}
	}
	var snap recur.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return nil, &storage.Error{Type: storage.TypeCorrupt, Message: "failed to decode snapshot " + id, Err: err}
	}
	rec.Snapshot = snap
	return rec, nil
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func notFound(id uuid.UUID) error {
	return &storage.Error{Type: storage.TypeNotFound, Message: "snapshot " + id.String() + " not found"}
}

func unavailable(op string, err error) error {
	return &storage.Error{Type: storage.TypeUnavailable, Message: op + " failed", Err: err}
}
