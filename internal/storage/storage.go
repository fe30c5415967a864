// Package storage is the persistence layer collaborator described in
// spec §6: it opens named, atomic transactions and offers batch writes
// and single-statement Exec/QueryRow/Query calls on top of them.
// Grounded on the teacher's store.go, which drove a single *sql.DB
// directly with db.Exec/db.QueryRow; here every write that must share
// atomicity with a round tick or a block write goes through Tx, which
// generalizes that pattern to an explicit database/sql transaction
// scope instead of one-statement-at-a-time autocommit.
package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// DB is the concrete, sqlite3-backed persistence layer.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the sqlite3 database at path and
// applies the schema. Grounded on the teacher's startdb/setSchema split
// in slidechain.go.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening db")
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "creating db schema")
	}
	return &DB{conn: conn}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Tx is the handle passed to every operation that writes inside a
// persistence transaction, per spec §5 ("the persistence transaction
// handle is passed by argument to every operation that writes").
type Tx struct {
	tx *sql.Tx
}

// Exec runs a write statement against the open transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryRow runs a single-row read against the open transaction, so
// reads inside a pipeline step see the transaction's own uncommitted
// writes.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// Query runs a multi-row read against the open transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// Write is one statement in a Batch call.
type Write struct {
	Query string
	Args  []interface{}
}

// Batch runs a sequence of writes against the open transaction, failing
// fast on the first error, matching spec §6's "batch([writes]) on a
// handle" contract used by the Chain Mutator's save-block step.
func (t *Tx) Batch(ctx context.Context, writes []Write) error {
	for _, w := range writes {
		if _, err := t.tx.ExecContext(ctx, w.Query, w.Args...); err != nil {
			return errors.Wrapf(err, "batch write %q", w.Query)
		}
	}
	return nil
}

// WithTx opens a new persistence transaction, named for logging, runs
// body against it, and commits on success or rolls back on error or
// panic. This realizes spec §6's tx(name, body) contract.
func (d *DB) WithTx(ctx context.Context, name string, body func(*Tx) error) (err error) {
	sqlTx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "opening persistence transaction %q", name)
	}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				log.WithFields(log.Fields{"tx": name, "rollback_err": rbErr}).
					Error("storage: rollback failed after transaction error")
			}
			return
		}
		err = sqlTx.Commit()
		if err != nil {
			err = errors.Wrapf(err, "committing persistence transaction %q", name)
		}
	}()

	err = body(&Tx{tx: sqlTx})
	return err
}

// Conn exposes the raw *sql.DB for collaborator statements that run
// autocommit outside a persistence transaction (cmd/chaind's bootstrap
// tip read, and the ledger's account lookup-or-create for the pool).
func (d *DB) Conn() *sql.DB {
	return d.conn
}

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
  id                    TEXT NOT NULL PRIMARY KEY,
  height                INTEGER NOT NULL UNIQUE,
  previous_block_id     TEXT,
  height_previous       INTEGER NOT NULL DEFAULT 0,
  height_prevoted       INTEGER NOT NULL DEFAULT 0,
  timestamp             INTEGER NOT NULL,
  generator_public_key  BLOB NOT NULL,
  payload               BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
  id                TEXT NOT NULL PRIMARY KEY,
  block_id          TEXT NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
  seq               INTEGER NOT NULL,
  type              INTEGER NOT NULL,
  sender_public_key BLOB NOT NULL,
  payload           BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_block_id ON transactions (block_id);

CREATE TABLE IF NOT EXISTS rounds (
  round_number INTEGER NOT NULL PRIMARY KEY,
  start_height INTEGER NOT NULL,
  delegates    BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
  public_key            BLOB NOT NULL PRIMARY KEY,
  balance               INTEGER NOT NULL DEFAULT 0,
  voted_delegate        BLOB,
  multisig_public_keys  BLOB,
  multisig_min          INTEGER NOT NULL DEFAULT 0
);
`
