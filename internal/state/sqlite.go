package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/store"
)

// SQLiteStore keeps each identity as a row tagged seen or excluded. Save
// rewrites the rows inside one transaction.
type SQLiteStore struct {
	path string
	db   *store.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}
	return &SQLiteStore{path: path, db: db}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Load(ctx context.Context) (domain.PersistedState, error) {
	snap, err := store.LoadSnapshot(ctx, s.db.Pool)
	if err != nil {
		return domain.PersistedState{}, fmt.Errorf("load state: %w", err)
	}
	st := domain.PersistedState{
		SeenIdentities:     domain.NewIdentitySet(snap.Seen...),
		ExcludedIdentities: domain.NewIdentitySet(snap.Excluded...),
		LastRunTimestamp:   snap.LastRun,
	}
	return st.Normalized(), nil
}

func (s *SQLiteStore) Save(ctx context.Context, st domain.PersistedState) error {
	st = st.Normalized()
	err := store.ReplaceSnapshot(ctx, s.db.Pool, store.Snapshot{
		Seen:     st.SeenIdentities.Sorted(),
		Excluded: st.ExcludedIdentities.Sorted(),
		LastRun:  st.LastRunTimestamp,
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// RecordRun appends a run to the history table.
func (s *SQLiteStore) RecordRun(ctx context.Context, sum domain.RunSummary) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	_, err = store.InsertRun(ctx, s.db.Pool, store.RunRecord{
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
		NetNew:     len(sum.NetNew),
		Exclusions: len(sum.Exclusions),
		Skipped:    sum.Skipped,
		Summary:    string(b),
	})
	if err != nil {
		return err
	}
	if n, err := store.CleanupOldRuns(s.db.Pool); err == nil && n > 0 {
		log.Printf("[state] pruned %d old runs", n)
	}
	return nil
}

func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]store.RunRecord, error) {
	return store.ListRuns(ctx, s.db.Pool, limit)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
