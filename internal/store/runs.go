package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type RunRecord struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	NetNew     int       `json:"netNew"`
	Exclusions int       `json:"exclusions"`
	Skipped    int       `json:"skipped"`
	Summary    string    `json:"-"` // raw summary json
}

func InsertRun(ctx context.Context, db *sql.DB, r RunRecord) (int64, error) {
	res, err := db.ExecContext(ctx, `
INSERT INTO runs (started_at, finished_at, net_new, exclusions, skipped, summary)
VALUES (?, ?, ?, ?, ?, ?);`,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.NetNew, r.Exclusions, r.Skipped, r.Summary,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns the newest runs first.
func ListRuns(ctx context.Context, db *sql.DB, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, started_at, finished_at, net_new, exclusions, skipped
FROM runs
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.NetNew, &r.Exclusions, &r.Skipped); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func CleanupOldRuns(db *sql.DB) (deleted int64, err error) {
	res, err := db.Exec(`
DELETE FROM runs
WHERE finished_at < strftime('%Y-%m-%dT%H:%M:%fZ', 'now', '-3 months');
`)
	if err != nil {
		return 0, fmt.Errorf("cleanup old runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
