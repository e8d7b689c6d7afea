package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// DB owns the planner database file. Writes go through a pool limited to one
// connection so write transactions are serialized; reads use a separate
// query-only pool and see WAL snapshots without waiting on the writer.
type DB struct {
	path     string
	writer   *sql.DB
	reader   *sql.DB
	migrator *Migrator
	validate *validator.Validate
	now      func() time.Time
	log      zerolog.Logger

	busyTimeout time.Duration
}

type Option func(*DB)

func WithLogger(l zerolog.Logger) Option { return func(db *DB) { db.log = l } }

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option { return func(db *DB) { db.now = now } }

func WithBusyTimeout(d time.Duration) Option { return func(db *DB) { db.busyTimeout = d } }

// WithMigrator replaces the schema migrator (tests).
func WithMigrator(m *Migrator) Option { return func(db *DB) { db.migrator = m } }

// Open creates the database directory and file if needed and migrates the
// schema. Every failure here is a *ConfigError.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." {
		return nil, &ConfigError{Path: path, Err: errors.New("missing database path")}
	}
	db := &DB{
		path:        path,
		migrator:    SchemaMigrator(),
		validate:    validator.New(),
		now:         func() time.Time { return time.Now().UTC() },
		log:         zerolog.Nop(),
		busyTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(db)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	writer, err := sql.Open("sqlite", db.dsn(true))
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)
	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, &ConfigError{Path: path, Err: err}
	}

	applied, err := db.migrator.Migrate(ctx, writer)
	if err != nil {
		_ = writer.Close()
		return nil, &ConfigError{Path: path, Err: err}
	}
	for _, name := range applied {
		db.log.Info().Str("migration", name).Str("db", path).Msg("applied migration")
	}

	reader, err := sql.Open("sqlite", db.dsn(false))
	if err != nil {
		_ = writer.Close()
		return nil, &ConfigError{Path: path, Err: err}
	}
	db.writer = writer
	db.reader = reader
	return db, nil
}

func (db *DB) dsn(write bool) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", db.busyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if write {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
		q.Set("_txlock", "immediate")
	} else {
		q.Add("_pragma", "query_only(1)")
	}
	return "file:" + filepath.ToSlash(db.path) + "?" + q.Encode()
}

func (db *DB) Path() string { return db.path }

func (db *DB) Close() error {
	var errs []error
	if db.reader != nil {
		errs = append(errs, db.reader.Close())
	}
	if db.writer != nil {
		errs = append(errs, db.writer.Close())
	}
	return errors.Join(errs...)
}

// Migrations lists applied migration names.
func (db *DB) Migrations(ctx context.Context) ([]string, error) {
	return db.migrator.Applied(ctx, db.writer)
}

// Migrate re-runs the migrator against the open database and returns the
// names it applied (none when the schema is current).
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	applied, err := db.migrator.Migrate(ctx, db.writer)
	if err != nil {
		return nil, &ConfigError{Path: db.path, Err: err}
	}
	return applied, nil
}

// Schema returns the CREATE statements recorded by sqlite, keyed by object name.
func (db *DB) Schema(ctx context.Context) (map[string]string, error) {
	rows, err := db.writer.QueryContext(ctx, `SELECT name, COALESCE(sql, '') FROM sqlite_master WHERE name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, ddl string
		if err := rows.Scan(&name, &ddl); err != nil {
			return nil, err
		}
		out[name] = ddl
	}
	return out, rows.Err()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reader is a read handle scoped to one transaction.
type Reader struct {
	q  querier
	db *DB
}

// Writer is a read-write handle scoped to one transaction.
type Writer struct {
	*Reader
	tx *sql.Tx
}

// Read runs fn inside a read transaction on the reader pool.
func (db *DB) Read(ctx context.Context, fn func(r *Reader) error) error {
	tx, err := db.reader.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(&Reader{q: tx, db: db}); err != nil {
		return err
	}
	return tx.Commit()
}

// Write runs fn inside a write transaction on the single writer connection.
// If fn returns an error the transaction is rolled back and the error is
// returned unmodified.
func (db *DB) Write(ctx context.Context, fn func(w *Writer) error) error {
	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(&Writer{Reader: &Reader{q: tx, db: db}, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}
