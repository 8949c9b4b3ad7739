package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Codec turns snapshot records into bytes and back.
type Codec interface {
	Encode(w io.Writer, rec *SnapshotRecord) error
	Decode(r io.Reader) (*SnapshotRecord, error)
	// Extension is the file extension used for encoded records, with the dot.
	Extension() string
}

// CodecFor returns the codec registered for a file extension or name
// ("json", ".xml", ...).
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "json":
		return JSONCodec{}, nil
	case "xml":
		return XMLCodec{}, nil
	}
	return nil, &Error{Type: TypeInvalidInput, Message: fmt.Sprintf("no codec for %q", name)}
}

// JSONCodec encodes records as indented JSON.
type JSONCodec struct{}

func (JSONCodec) Extension() string { return ".json" }

func (JSONCodec) Encode(w io.Writer, rec *SnapshotRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return &Error{Type: TypeInvalidInput, Message: "failed to encode snapshot", Err: err}
	}
	return nil
}

func (JSONCodec) Decode(r io.Reader) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, &Error{Type: TypeCorrupt, Message: "failed to decode snapshot", Err: err}
	}
	return &rec, nil
}
