// Package store is the Metadata Store (spec §4.B): an embedded, single-
// writer relational store of apps, releases, groups and delta records,
// backed by modernc.org/sqlite (pure Go, no cgo) through database/sql and
// github.com/jmoiron/sqlx for struct scanning.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB is the store's handle. All mutation happens through Transaction or
// TransactionWithResult; read-only helpers may be called directly.
type DB struct {
	sqlx *sqlx.DB
}

// Open opens (creating if absent) the SQLite database at path, enables
// write-ahead logging and foreign-key enforcement, and runs the schema
// migration.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // single-writer per spec §5

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting %q: %w", p, err)
		}
	}

	db := &DB{sqlx: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.sqlx.Close()
}

// Checkpoint truncates the write-ahead log, bounding its size after a long
// idle period (spec §4.B).
func (db *DB) Checkpoint() error {
	_, err := db.sqlx.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("checkpointing WAL: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	name TEXT PRIMARY KEY,
	label TEXT NOT NULL DEFAULT '',
	group_name TEXT,
	last_update INTEGER NOT NULL DEFAULT 0,
	icon BLOB
);

CREATE TABLE IF NOT EXISTS releases (
	package TEXT NOT NULL REFERENCES packages(name) ON DELETE CASCADE,
	version_code INTEGER NOT NULL,
	version_name TEXT NOT NULL DEFAULT '',
	min_sdk INTEGER NOT NULL DEFAULT 0,
	release_timestamp INTEGER NOT NULL,
	apk_sha256 TEXT NOT NULL,
	v4_sha256 TEXT,
	release_notes TEXT,
	PRIMARY KEY (package, version_code)
);

CREATE TABLE IF NOT EXISTS release_certs (
	package TEXT NOT NULL,
	version_code INTEGER NOT NULL,
	cert_digest TEXT NOT NULL,
	FOREIGN KEY (package, version_code) REFERENCES releases(package, version_code) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_release_certs ON release_certs(package, version_code);

CREATE TABLE IF NOT EXISTS uses_library (
	package TEXT NOT NULL,
	version_code INTEGER NOT NULL,
	name TEXT NOT NULL,
	required INTEGER NOT NULL,
	FOREIGN KEY (package, version_code) REFERENCES releases(package, version_code) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS uses_static_library (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	package TEXT NOT NULL,
	version_code INTEGER NOT NULL,
	name TEXT NOT NULL,
	lib_version INTEGER NOT NULL,
	FOREIGN KEY (package, version_code) REFERENCES releases(package, version_code) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS uses_static_library_certs (
	uses_static_library_id INTEGER NOT NULL REFERENCES uses_static_library(id) ON DELETE CASCADE,
	cert_digest TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS uses_package (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	package TEXT NOT NULL,
	version_code INTEGER NOT NULL,
	package_type TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	min_version INTEGER,
	version_major INTEGER,
	FOREIGN KEY (package, version_code) REFERENCES releases(package, version_code) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS uses_package_certs (
	uses_package_id INTEGER NOT NULL REFERENCES uses_package(id) ON DELETE CASCADE,
	cert_digest TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS delta_records (
	package TEXT NOT NULL REFERENCES packages(name) ON DELETE CASCADE,
	base_version INTEGER NOT NULL,
	target_version INTEGER NOT NULL,
	sha256 TEXT NOT NULL,
	PRIMARY KEY (package, base_version, target_version)
);
`

func (db *DB) migrate() error {
	if _, err := db.sqlx.Exec(schema); err != nil {
		return fmt.Errorf("running schema migration: %w", err)
	}
	return nil
}

// Tx wraps an in-flight transaction with the rollback-hook mechanism the
// spec requires: hooks registered with AfterRollback fire only if the
// transaction is rolled back, never on commit (spec §4.B).
type Tx struct {
	tx            *sqlx.Tx
	rollbackHooks []func()
}

// AfterRollback registers hook to run if and only if the enclosing
// transaction rolls back.
func (tx *Tx) AfterRollback(hook func()) {
	tx.rollbackHooks = append(tx.rollbackHooks, hook)
}

// Transaction runs body inside a new transaction, committing on success and
// rolling back (running any registered AfterRollback hooks) on error or
// panic.
func (db *DB) Transaction(ctx context.Context, body func(tx *Tx) error) error {
	_, err := TransactionWithResult(db, ctx, func(tx *Tx) (struct{}, error) {
		return struct{}{}, body(tx)
	})
	return err
}

// TransactionWithResult is Transaction's generic counterpart for bodies
// that need to return a value alongside the error.
func TransactionWithResult[T any](db *DB, ctx context.Context, body func(tx *Tx) (T, error)) (T, error) {
	var zero T

	sqlTx, err := db.sqlx.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("beginning transaction: %w", err)
	}
	tx := &Tx{tx: sqlTx}

	result, err := func() (result T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in transaction body: %v", r)
			}
		}()
		return body(tx)
	}()

	if err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		runRollbackHooks(tx)
		return zero, err
	}

	if err := sqlTx.Commit(); err != nil {
		runRollbackHooks(tx)
		return zero, fmt.Errorf("committing transaction: %w", err)
	}
	return result, nil
}

func runRollbackHooks(tx *Tx) {
	for _, hook := range tx.rollbackHooks {
		hook()
	}
}
