// Package sqlstore persists sessions, participations, users, notifications
// and the audit log over database/sql. PostgreSQL and SQLite share one
// implementation; the dialect only changes placeholders, row locking and
// constraint error detection.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	// lockSuffix is appended to the session read that opens a unit of work.
	lockSuffix string
	isUnique   func(error) bool
}

var postgresDialect = dialect{
	name:        DriverPostgres,
	placeholder: sq.Dollar,
	lockSuffix:  "FOR UPDATE OF s",
	isUnique: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

// SQLite serialises writers with BEGIN IMMEDIATE and a single connection, so
// no row lock clause is needed.
var sqliteDialect = dialect{
	name:        DriverSQLite,
	placeholder: sq.Question,
	isUnique: func(err error) bool {
		var sqliteErr *msqlite.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				return true
			}
		}
		return false
	},
}

// Store is the SQL-backed store for every persisted record of the service.
type Store struct {
	db   *sql.DB
	pool *pgxpool.Pool
	d    dialect
	sb   sq.StatementBuilderType
}

func newStore(db *sql.DB, pool *pgxpool.Pool, d dialect) *Store {
	return &Store{
		db:   db,
		pool: pool,
		d:    d,
		sb:   sq.StatementBuilder.PlaceholderFormat(d.placeholder),
	}
}

// OpenPostgres connects to PostgreSQL, retrying while the server comes up,
// and applies pending migrations.
func OpenPostgres(ctx context.Context, url string) (*Store, error) {
	pool, err := connectPool(ctx, url)
	if err != nil {
		return nil, err
	}
	s := newStore(stdlib.OpenDBFromPool(pool), pool, postgresDialect)
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies pending migrations.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	var fk int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite foreign keys are disabled")
	}

	s := newStore(db, nil, sqliteDialect)
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver names the active dialect.
func (s *Store) Driver() string {
	return s.d.name
}

// conflictOr maps unique violations to storage.ErrConflict and wraps
// everything else with op.
func (s *Store) conflictOr(op string, err error) error {
	if err == nil {
		return nil
	}
	if s.d.isUnique(err) {
		return errConflict(op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
