// Package state persists the seen and excluded identity sets between runs.
package state

import (
	"context"
	"fmt"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/store"
)

// Store is the persistence boundary of the engine. Load returns an empty
// state when nothing was saved yet. Save replaces the snapshot as a whole:
// a later Load sees either the old snapshot or the new one, never a mix.
//
// Stores assume a single writer; see Lock. Path is the file the run lock
// must be taken next to.
type Store interface {
	Load(ctx context.Context) (domain.PersistedState, error)
	Save(ctx context.Context, st domain.PersistedState) error
	Path() string
	Close() error
}

// RunRecorder is implemented by stores that also keep run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, sum domain.RunSummary) error
	Runs(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// Open returns the store configured in cfg.State.
func Open(cfg config.Config) (Store, error) {
	path := cfg.StatePath()
	switch cfg.State.Backend {
	case "", "json":
		return NewFileStore(path), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
