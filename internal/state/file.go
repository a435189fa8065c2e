package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"jobwatch-engine/internal/domain"
)

// FileStore keeps the state as one JSON document:
//
//	{"seenIdentities": [...], "excludedIdentities": [...], "lastRunTimestamp": "..."}
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (domain.PersistedState, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.EmptyState(), nil
	}
	if err != nil {
		return domain.PersistedState{}, fmt.Errorf("read state %s: %w", s.path, err)
	}

	var st domain.PersistedState
	if err := json.Unmarshal(b, &st); err != nil {
		return domain.PersistedState{}, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	return st.Normalized(), nil
}

// Save writes to a temp file in the same directory, syncs it and renames it
// over the old snapshot.
func (s *FileStore) Save(ctx context.Context, st domain.PersistedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st.Normalized(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return writeFileAtomic(s.path, append(b, '\n'))
}

func (s *FileStore) Close() error { return nil }

// rename is swapped in tests to fail the final step.
var rename = os.Rename

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := rename(tmpName, path); err != nil {
		return fmt.Errorf("rename state into place: %w", err)
	}

	// make the rename itself durable; not every platform can fsync a dir
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// WriteFileAtomic is the same all-or-nothing write, for other run artifacts
// such as the summary file.
func WriteFileAtomic(path string, b []byte) error {
	return writeFileAtomic(path, b)
}
