// Package storage is the sqlite-backed persistent store for runs and task executions: the two
// row kinds the shepherd owns. Every row update goes through an "updatable fields" struct so a
// partial update can never clobber a column it didn't intend to touch.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEntityNotFound is returned when a row could not be located.
	ErrEntityNotFound = errors.New("storage: entity not found")

	// ErrEntityExists is returned on insert of a row whose unique key already exists. For
	// TaskExecutions this is not fatal: it signals the monitor is recovering from a restart and
	// the insert should be treated as a no-op rather than an error.
	ErrEntityExists = errors.New("storage: entity already exists")

	// ErrInternal wraps an otherwise-uncategorized database error.
	ErrInternal = errors.New("storage: unknown db error")
)

// Queryable includes methods shared by sqlx.Tx and sqlx.DB so callers can run the same query
// helpers either directly or inside a transaction.
type Queryable interface {
	sqlx.Queryer
	sqlx.Execer
	GetContext(context.Context, interface{}, string, ...interface{}) error
	SelectContext(context.Context, interface{}, string, ...interface{}) error
	Get(interface{}, string, ...interface{}) error
	Select(interface{}, string, ...interface{}) error
	QueryRow(string, ...interface{}) *sql.Row
	NamedExec(string, interface{}) (sql.Result, error)
	MustExec(string, ...interface{}) sql.Result
}

// DB is the sqlite-backed store.
type DB struct {
	maxResultsLimit int
	*sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	namespace              TEXT NOT NULL,
	pipeline               TEXT NOT NULL,
	id                     INTEGER NOT NULL,
	started                INTEGER NOT NULL,
	ended                  INTEGER NOT NULL DEFAULT 0,
	state                  TEXT NOT NULL,
	status                 TEXT NOT NULL,
	status_reason          TEXT NOT NULL DEFAULT '',
	initiator              TEXT NOT NULL DEFAULT '',
	variables              TEXT NOT NULL DEFAULT '[]',
	store_objects_expired  BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (namespace, pipeline, id)
);

CREATE TABLE IF NOT EXISTS task_executions (
	namespace     TEXT NOT NULL,
	pipeline      TEXT NOT NULL,
	run           INTEGER NOT NULL,
	id            TEXT NOT NULL,
	task          TEXT NOT NULL,
	started       INTEGER NOT NULL DEFAULT 0,
	ended         INTEGER NOT NULL DEFAULT 0,
	exit_code     INTEGER NOT NULL DEFAULT 1,
	logs_expired  BOOLEAN NOT NULL DEFAULT 0,
	logs_removed  BOOLEAN NOT NULL DEFAULT 0,
	state         TEXT NOT NULL,
	status        TEXT NOT NULL,
	status_reason TEXT NOT NULL DEFAULT '',
	variables     TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (namespace, pipeline, run, id)
);
`

// New opens (creating if necessary) a sqlite database at path and applies the schema.
func New(path string, maxResultsLimit int) (DB, error) {
	dsn := fmt.Sprintf("%s?_journal=wal&_fk=true&_timeout=5000", path)

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return DB{}, err
	}

	migration := migrate{
		Migrations: []migration{
			migrationQuery("0_init", schema),
		},
	}

	if err := migration.migrate(db, "sqlite3"); err != nil {
		return DB{}, err
	}

	return DB{maxResultsLimit, db}, nil
}

// InsideTx is a convenience function so callers can run multiple queries inside a transaction.
func InsideTx(db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}

	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			log.Error().Err(rerr).Msg("could not roll back transaction")
		}
		return err
	}

	return tx.Commit()
}
