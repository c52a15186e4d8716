// Package store persists the reply log in SQLite. The log serves two
// masters: the anti-spam guard's rate and recency queries, and outcome
// attribution after a reply has been live long enough to judge.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version. Bump when adding
// migrations.
const CurrentSchemaVersion = 2

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the reply log at path and migrates it to
// the current schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	// Pragmas ride the connection string so every pooled connection gets
	// them.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open reply log: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(path, 0600)

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	// 0 -> 1: the reply log proper.
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS reply_log (
		  id            INTEGER PRIMARY KEY AUTOINCREMENT,
		  decision_id   TEXT NOT NULL UNIQUE,
		  target_id     TEXT NOT NULL,
		  root_id       TEXT NOT NULL,
		  author_handle TEXT NOT NULL,
		  reply_text    TEXT NOT NULL,
		  kind          TEXT NOT NULL,
		  target_hash   TEXT,
		  posted_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reply_log_posted_at
		ON reply_log(posted_at DESC);

		CREATE INDEX IF NOT EXISTS idx_reply_log_author
		ON reply_log(author_handle, posted_at DESC);

		CREATE INDEX IF NOT EXISTS idx_reply_log_root
		ON reply_log(root_id, posted_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
		version = 1
	}

	// 1 -> 2: outcome attribution columns, filled in well after posting.
	if version < 2 {
		schema := `
		ALTER TABLE reply_log ADD COLUMN impressions INTEGER;
		ALTER TABLE reply_log ADD COLUMN likes INTEGER;
		ALTER TABLE reply_log ADD COLUMN replies INTEGER;
		ALTER TABLE reply_log ADD COLUMN reposts INTEGER;
		ALTER TABLE reply_log ADD COLUMN followers_gained INTEGER;
		ALTER TABLE reply_log ADD COLUMN engagement_rate REAL;
		ALTER TABLE reply_log ADD COLUMN outcome_at INTEGER;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := setUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode took effect from the connection
// string.
func verifyWALMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("verify journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", mode)
	}
	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
