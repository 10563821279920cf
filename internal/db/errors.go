package db

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrClosed is returned by every operation on a closed Manager
	ErrClosed = errors.New("database is closed")
	// ErrTxInProgress is returned by Begin while a transaction is already open
	ErrTxInProgress = errors.New("transaction already in progress")
	// ErrNoTx is returned by Commit and Rollback when no transaction is open
	ErrNoTx = errors.New("no transaction in progress")
)

// ConnectionError reports a failure to open, use or close the database handle
type ConnectionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("connection %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps a driver error raised by a data statement
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (sql: %s)", e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ConstraintViolation is a QueryError caused by a foreign key, unique,
// not-null or check constraint
type ConstraintViolation struct {
	SQL string
	Err error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation: %v (sql: %s)", e.Err, e.SQL)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// IntrospectionError reports a failure to read catalog metadata for a table
type IntrospectionError struct {
	Table string
	Err   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("failed to introspect table %s: %v", e.Table, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// MigrationError reports a failed reconciliation batch. By the time it is
// returned the batch has been rolled back.
type MigrationError struct {
	Table     string
	Statement string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("migration of table %s failed: %v (statement: %s)", e.Table, e.Err, e.Statement)
	}
	return fmt.Sprintf("migration of table %s failed: %v", e.Table, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// wrapQueryError classifies a driver error raised by query
func wrapQueryError(query string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return &ConstraintViolation{SQL: query, Err: err}
	}
	return &QueryError{SQL: query, Err: err}
}

// IsConstraintViolation reports whether err was caused by a violated constraint
func IsConstraintViolation(err error) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv)
}
