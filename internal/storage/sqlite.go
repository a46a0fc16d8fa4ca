package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/alvmarrod/tgbot-chapter-notifier/migrations"
)

// Lifecycle and write errors reported by the primitive tier.
var (
	ErrNotInitialized = errors.New("store not initialized")
	ErrClosed         = errors.New("store closed")
	ErrNoRowsAffected = errors.New("no rows affected")
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateClosed
)

// SQLite is the primitive tier of the store. It owns the only connection
// to the database and serializes every statement behind one mutex.
type SQLite struct {
	mu    sync.Mutex
	dsn   string
	db    *sql.DB
	state state
}

// NewSQLite returns an uninitialized store for dsn. Call Init before use.
func NewSQLite(dsn string) *SQLite {
	return &SQLite{dsn: dsn}
}

// Init opens the database and ensures the schema. Calling Init on an
// initialized store is a no-op; a closed store cannot be reopened.
func (s *SQLite) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateInitialized:
		return nil
	case stateClosed:
		return ErrClosed
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: the mutex is the only concurrency control, and an
	// in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.state = stateInitialized
	return nil
}

// Close releases the connection. The store is unusable afterwards.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrClosed
	case stateUninitialized:
		s.state = stateClosed
		return nil
	}

	s.state = stateClosed
	return s.db.Close()
}

func (s *SQLite) usable() error {
	switch s.state {
	case stateUninitialized:
		return ErrNotInitialized
	case stateClosed:
		return ErrClosed
	}
	return nil
}

// Exec runs a write statement. A statement that affects zero rows is
// reported as ErrNoRowsAffected even though it executed cleanly.
func (s *SQLite) Exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return checkAffected(res)
}

// Query runs a read statement and hands every row to scan while the
// connection is still held.
func (s *SQLite) Query(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}
	return rows.Err()
}

// Tx runs fn inside a transaction on the guarded connection.
func (s *SQLite) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
