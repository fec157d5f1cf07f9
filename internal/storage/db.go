package storage

import (
	"database/sql"
	"fmt"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var vecExtensionOnce sync.Once

// DB is the process-owned storage handle. All writers and readers in
// this package take a *DB rather than a bare *sql.DB so the embedding
// dimension travels with the connection.
type DB struct {
	conn       *sql.DB
	dimensions int
}

// Open creates (or reuses) the SQLite database at path, applies pending
// migrations, and ensures the chunk_vectors vec0 virtual table exists
// for the given embedding dimension.
func Open(path string, dimensions int) (*DB, error) {
	vecExtensionOnce.Do(sqlite_vec.Auto)

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, wrapErr("Open", err)
	}
	// SQLite allows only one writer at a time; a single pooled connection
	// also keeps ":memory:" databases from silently fragmenting across
	// concurrent connections in tests.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, wrapErr("Open", fmt.Errorf("enabling foreign keys: %w", err))
	}

	if err := applyMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	if err := ensureVectorTable(conn, dimensions); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn, dimensions: dimensions}, nil
}

func (db *DB) Close() error {
	return wrapErr("Close", db.conn.Close())
}

func (db *DB) Dimensions() int { return db.dimensions }

var (
	singletonMu sync.Mutex
	singleton   *DB
)

// Shared returns the process-wide DB handle, opening it on first use.
// Reset clears it so tests can swap in a fresh in-memory database.
func Shared(path string, dimensions int) (*DB, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		return singleton, nil
	}
	db, err := Open(path, dimensions)
	if err != nil {
		return nil, err
	}
	singleton = db
	return singleton, nil
}

// Reset closes and clears the shared singleton. Tests only.
func Reset() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		singleton.conn.Close()
		singleton = nil
	}
}

func ensureVectorTable(conn *sql.DB, dimensions int) error {
	createSQL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(chunk_id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := conn.Exec(createSQL); err != nil {
		return wrapErr("ensureVectorTable", err)
	}
	return nil
}
