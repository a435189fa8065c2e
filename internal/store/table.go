package store

import (
	"database/sql"
)

const (
	KindSeen     = "seen"
	KindExcluded = "excluded"
)

const schemaVersion = 1

// Migrate brings the schema up to schemaVersion. It is safe to call on
// every open.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v < schemaVersion {
		// ---- Schema v1: identity sets, meta, run history ----
		for _, stmt := range []string{`
CREATE TABLE IF NOT EXISTS identities (
  identity TEXT PRIMARY KEY,
  kind TEXT NOT NULL CHECK (kind IN ('seen', 'excluded')),
  first_recorded TEXT NOT NULL
);`, `
CREATE INDEX IF NOT EXISTS idx_identities_kind
ON identities(kind);`, `
CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  net_new INTEGER NOT NULL DEFAULT 0,
  exclusions INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  summary TEXT NOT NULL DEFAULT '{}'
);`,
			`PRAGMA user_version = 1;`,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
