package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"traffic-harvester/internal/model"
)

// CorruptStateError reports a snapshot that exists but cannot be decoded.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// PersistError reports a failed snapshot write.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// EventStore keeps the whole collection as one pretty-printed JSON array.
type EventStore struct {
	path string
}

func NewEventStore(path string) *EventStore {
	return &EventStore{path: path}
}

func (s *EventStore) Path() string { return s.path }

// Load returns the persisted collection. A missing file is an empty
// collection. An unparseable file yields an empty collection together with a
// *CorruptStateError so the caller can log it and carry on.
func (s *EventStore) Load() (model.Collection, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Collection{}, nil
	}
	if err != nil {
		return model.Collection{}, fmt.Errorf("read state %s: %w", s.path, err)
	}
	var c model.Collection
	if err := json.Unmarshal(b, &c); err != nil {
		return model.Collection{}, &CorruptStateError{Path: s.path, Err: err}
	}
	if c == nil {
		c = model.Collection{}
	}
	return c, nil
}

// Save overwrites the snapshot with c. The bytes go to a temp file in the
// same directory which is then renamed over the snapshot, so a reader sees
// either the old or the new collection.
func (s *EventStore) Save(c model.Collection) error {
	if c == nil {
		c = model.Collection{}
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistError{Path: s.path, Err: err}
	}
	if _, err := tmp.Write(b); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistError{Path: s.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return &PersistError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &PersistError{Path: s.path, Err: err}
	}
	return nil
}
