// Package file stores snapshot records as one file per record in a directory.
package file

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/librecur/storage"
)

// Store implements storage.Store on a directory. Records are named
// "<id><ext>", the extension coming from the codec.
type Store struct {
	mu    sync.Mutex
	dir   string
	codec storage.Codec
	now   func() time.Time
}

// Open creates dir if needed and returns a store using codec.
func Open(dir string, codec storage.Codec) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "cannot create " + dir, Err: err}
	}
	return &Store{dir: dir, codec: codec, now: time.Now}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+s.codec.Extension())
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

	prev, err := s.read(rec.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	rec.Touch(prev, s.now())

	// Write to a temporary file first so a failed write never leaves a
	// truncated record behind.
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+rec.ID.String()+"-*")
	if err != nil {
		return &storage.Error{Type: storage.TypeUnavailable, Message: "cannot create temporary file", Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := s.codec.Encode(tmp, rec); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return &storage.Error{Type: storage.TypeUnavailable, Message: "cannot write " + tmp.Name(), Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path(rec.ID)); err != nil {
		return &storage.Error{Type: storage.TypeUnavailable, Message: "cannot store record", Err: err}
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*storage.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "load cancelled", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *Store) read(id uuid.UUID) (*storage.SnapshotRecord, error) {
	f, err := os.Open(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &storage.Error{Type: storage.TypeNotFound, Message: "snapshot " + id.String() + " not found"}
	}
	if err != nil {
		return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "cannot open record", Err: err}
	}
	defer f.Close()

	rec, err := s.codec.Decode(f)
	if err != nil {
		return nil, err
	}
	if rec.ID != id {
		return nil, &storage.Error{Type: storage.TypeCorrupt, Message: "file " + f.Name() + " holds record " + rec.ID.String()}
	}
	return rec, nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return &storage.Error{Type: storage.TypeNotFound, Message: "snapshot " + id.String() + " not found"}
	}
	if err != nil {
		return &storage.Error{Type: storage.TypeUnavailable, Message: "cannot delete record", Err: err}
	}
	return nil
}

// List decodes every record in the directory. Files that are not named after
// a record ID are ignored.
func (s *Store) List(ctx context.Context) ([]*storage.SnapshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "cannot read " + s.dir, Err: err}
	}

	var records []*storage.SnapshotRecord
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, &storage.Error{Type: storage.TypeUnavailable, Message: "list cancelled", Err: err}
		}
		name, ok := strings.CutSuffix(e.Name(), s.codec.Extension())
		if !ok || e.IsDir() {
			continue
		}
		id, err := uuid.Parse(name)
		if err != nil {
			continue
		}
		rec, err := s.read(id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b *storage.SnapshotRecord) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return records, nil
}
