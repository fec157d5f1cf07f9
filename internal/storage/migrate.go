package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationNameRe = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

type migration struct {
	version     int
	description string
	sql         string
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		m := migrationNameRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s has a non-numeric version: %w", entry.Name(), err)
		}
		contents, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, migration{version: version, description: m[2], sql: string(contents)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

// applyMigrations runs every embedded migration whose version has not
// already been recorded in schema_version, each inside its own
// transaction. Migration 000 creates the tracking table and is safe to
// re-run.
func applyMigrations(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return wrapErr("applyMigrations", err)
	}

	for _, m := range migrations {
		applied, err := isApplied(db, m.version)
		if err != nil {
			return wrapErr("applyMigrations", err)
		}
		if applied {
			continue
		}
		if err := applyOne(db, m); err != nil {
			return wrapErr(fmt.Sprintf("applyMigrations(version=%d)", m.version), err)
		}
	}
	return nil
}

func isApplied(db *sql.DB, version int) (bool, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM schema_version WHERE version = ?`, version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func applyOne(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			// original error (if any) already propagated by the caller;
			// a rollback failure here just means the tx was already closed.
			_ = rbErr
		}
	}()

	if _, err := tx.Exec(m.sql); err != nil {
		return fmt.Errorf("executing migration %d (%s): %w", m.version, m.description, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)`,
		m.version, m.description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
