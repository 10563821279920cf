package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// DataAccess is the contract handed to collaborators once the schema is reconciled
type DataAccess interface {
	Run(ctx context.Context, query string, args ...any) (Result, error)
	Get(ctx context.Context, query string, args ...any) (Row, bool, error)
	All(ctx context.Context, query string, args ...any) ([]Row, error)
	Close() error
}

// Result describes the effect of a mutating statement
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Pragmas are the session settings applied right after the handle is opened
type Pragmas struct {
	ForeignKeys bool   `koanf:"foreign_keys"`
	JournalMode string `koanf:"journal_mode"`
	Synchronous string `koanf:"synchronous"`
	CacheSize   int    `koanf:"cache_size"`
}

// DefaultPragmas enables foreign keys and WAL with NORMAL sync and a 2 MiB page cache
func DefaultPragmas() Pragmas {
	return Pragmas{
		ForeignKeys: true,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		CacheSize:   -2000,
	}
}

var (
	journalModes = map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	syncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// statements renders the pragmas; values are whitelisted since PRAGMA takes no parameters
func (p Pragmas) statements() ([]string, error) {
	fk := "OFF"
	if p.ForeignKeys {
		fk = "ON"
	}
	stmts := []string{"PRAGMA foreign_keys = " + fk}

	if p.JournalMode != "" {
		mode := strings.ToUpper(p.JournalMode)
		if !journalModes[mode] {
			return nil, fmt.Errorf("unsupported journal mode %q", p.JournalMode)
		}
		stmts = append(stmts, "PRAGMA journal_mode = "+mode)
	}
	if p.Synchronous != "" {
		mode := strings.ToUpper(p.Synchronous)
		if !syncModes[mode] {
			return nil, fmt.Errorf("unsupported synchronous mode %q", p.Synchronous)
		}
		stmts = append(stmts, "PRAGMA synchronous = "+mode)
	}
	if p.CacheSize != 0 {
		stmts = append(stmts, "PRAGMA cache_size = "+strconv.Itoa(p.CacheSize))
	}
	return stmts, nil
}

// Options configures Open
type Options struct {
	Pragmas Pragmas
	Logger  *slog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Manager owns the single connection to the SQLite file.
//
// Every statement is serialized on one connection. While a transaction opened
// with Begin is in progress, Run, Get and All execute inside it.
type Manager struct {
	mu     sync.Mutex
	db     *sql.DB
	tx     *sql.Tx
	path   string
	closed bool
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the session pragmas
func Open(ctx context.Context, path string, opts *Options) (*Manager, error) {
	if opts == nil {
		opts = &Options{Pragmas: DefaultPragmas()}
	}
	if path == "" {
		return nil, &ConnectionError{Op: "open", Err: errors.New("database path is required")}
	}

	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, &ConnectionError{Op: "open", Path: path, Err: fmt.Errorf("failed to create database directory: %w", err)}
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Path: path, Err: fmt.Errorf("failed to open database: %w", err)}
	}

	// One connection for the process lifetime, so session pragmas and
	// in-memory databases survive between statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Op: "open", Path: path, Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	m := NewManager(db, opts.Logger)
	m.path = path

	if err := m.applyPragmas(ctx, opts.Pragmas); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Op: "open", Path: path, Err: err}
	}

	m.logger.Debug("database opened", "path", path)
	return m, nil
}

// NewManager wraps an already opened handle without applying pragmas
func NewManager(db *sql.DB, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{db: db, logger: logger}
}

func (m *Manager) applyPragmas(ctx context.Context, p Pragmas) error {
	stmts, err := p.statements()
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}
	return nil
}

// Path returns the database file path
func (m *Manager) Path() string {
	return m.path
}

// current returns the handle statements should run on; m.mu must be held
func (m *Manager) current(op string) (querier, error) {
	if m.closed {
		return nil, &ConnectionError{Op: op, Path: m.path, Err: ErrClosed}
	}
	if m.tx != nil {
		return m.tx, nil
	}
	return m.db, nil
}

// Run executes a mutating statement
func (m *Manager) Run(ctx context.Context, query string, args ...any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.current("run")
	if err != nil {
		return Result{}, err
	}

	m.logger.Debug("exec", "sql", query)
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, wrapQueryError(query, err)
	}

	var out Result
	// Not every driver reports both values; missing ones stay zero.
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

// Get executes a query expected to return at most one row.
// The boolean is false when no row matched.
func (m *Manager) Get(ctx context.Context, query string, args ...any) (Row, bool, error) {
	rows, err := m.query(ctx, "get", query, 1, args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// All executes a query and returns every row in order
func (m *Manager) All(ctx context.Context, query string, args ...any) ([]Row, error) {
	return m.query(ctx, "all", query, 0, args...)
}

// query runs a statement and collects up to limit rows (0 means all)
func (m *Manager) query(ctx context.Context, op, query string, limit int, args ...any) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.current(op)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("query", "sql", query)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryError(query, err)
	}
	defer rows.Close()

	out, err := scanRows(rows, limit)
	if err != nil {
		return nil, wrapQueryError(query, err)
	}
	return out, nil
}

// Begin opens an explicit transaction. Transactions do not nest.
func (m *Manager) Begin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &ConnectionError{Op: "begin", Path: m.path, Err: ErrClosed}
	}
	if m.tx != nil {
		return ErrTxInProgress
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	m.tx = tx
	return nil
}

// Commit commits the open transaction
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tx == nil {
		return ErrNoTx
	}
	tx := m.tx
	m.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the open transaction
func (m *Manager) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tx == nil {
		return ErrNoTx
	}
	tx := m.tx
	m.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// InTx runs fn inside a transaction. The transaction is committed when fn
// succeeds; otherwise it is rolled back and fn's error is returned once the
// rollback has completed.
func (m *Manager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.Begin(ctx); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if rbErr := m.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return m.Commit()
}

// Close releases the handle. An open transaction is rolled back first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.tx != nil {
		_ = m.tx.Rollback()
		m.tx = nil
	}
	if err := m.db.Close(); err != nil {
		return &ConnectionError{Op: "close", Path: m.path, Err: err}
	}
	m.logger.Debug("database closed", "path", m.path)
	return nil
}
