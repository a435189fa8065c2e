package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const metaLastRun = "last_run"

// Snapshot is the persisted identity state in table form.
type Snapshot struct {
	Seen     []string
	Excluded []string
	LastRun  time.Time
}

func LoadSnapshot(ctx context.Context, db *sql.DB) (Snapshot, error) {
	var snap Snapshot

	rows, err := db.QueryContext(ctx, `SELECT identity, kind FROM identities ORDER BY identity;`)
	if err != nil {
		return snap, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return snap, err
		}
		switch kind {
		case KindSeen:
			snap.Seen = append(snap.Seen, id)
		case KindExcluded:
			snap.Excluded = append(snap.Excluded, id)
		}
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	var ts string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?;`, metaLastRun).Scan(&ts)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return snap, err
	default:
		snap.LastRun, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return snap, fmt.Errorf("bad %s in meta: %w", metaLastRun, err)
		}
	}
	return snap, nil
}

// ReplaceSnapshot makes the tables equal to snap in one transaction.
// Identities already present keep their first_recorded time.
func ReplaceSnapshot(ctx context.Context, db *sql.DB, snap Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	want := make(map[string]string, len(snap.Seen)+len(snap.Excluded))
	for _, id := range snap.Seen {
		want[id] = KindSeen
	}
	for _, id := range snap.Excluded {
		want[id] = KindExcluded
	}

	rows, err := tx.QueryContext(ctx, `SELECT identity FROM identities;`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := want[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE identity = ?;`, id); err != nil {
			return fmt.Errorf("delete identity: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO identities (identity, kind, first_recorded)
VALUES (?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET kind = excluded.kind;`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, kind := range want {
		if _, err := stmt.ExecContext(ctx, id, kind, now); err != nil {
			return fmt.Errorf("upsert identity: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`,
		metaLastRun, snap.LastRun.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	return tx.Commit()
}
