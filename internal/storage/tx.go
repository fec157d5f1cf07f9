package storage

import (
	"database/sql"
	"log"
)

// withTransaction wraps fn in BEGIN/COMMIT/ROLLBACK. On any error from fn
// the transaction rolls back and the original error propagates; a
// rollback failure is logged but never supersedes fn's error.
func withTransaction(db *DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return wrapErr("withTransaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			log.Printf("storage: rollback failed after error %v: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("withTransaction", err)
	}
	return nil
}
