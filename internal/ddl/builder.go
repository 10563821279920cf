// Package ddl builds SQLite data-definition statements from declared tables.
//
// Identifiers cannot be bound as statement parameters, so every table, column
// and index name is checked against a strict identifier grammar before it is
// written into a statement. Column types, default literals and ON DELETE
// actions are checked against their own narrow grammars for the same reason.
package ddl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

var (
	// ErrInvalidIdentifier is returned for names outside [A-Za-z_][A-Za-z0-9_]*
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInvalidType is returned for column types that are not plain SQL type names
	ErrInvalidType = errors.New("invalid column type")
	// ErrInvalidDefault is returned for default values that are not SQL literals
	ErrInvalidDefault = errors.New("invalid default literal")
	// ErrInvalidAction is returned for unknown ON DELETE actions
	ErrInvalidAction = errors.New("invalid foreign key action")
	// ErrPrimaryKeyColumn is returned when asked to add a primary key to an existing table
	ErrPrimaryKeyColumn = errors.New("cannot add a primary key column to an existing table")
)

const maxIdentifierLength = 128

var (
	identPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	typePattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*( [A-Za-z][A-Za-z0-9_]*)*(\(\s*[0-9]+\s*(,\s*[0-9]+\s*)?\))?$`)
	numericPattern = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
	stringPattern  = regexp.MustCompile(`^'([^']|'')*'$`)
	blobPattern    = regexp.MustCompile(`^[xX]'([0-9A-Fa-f]{2})*'$`)
)

var keywordDefaults = map[string]bool{
	"NULL":              true,
	"TRUE":              true,
	"FALSE":             true,
	"CURRENT_TIME":      true,
	"CURRENT_DATE":      true,
	"CURRENT_TIMESTAMP": true,
}

var deleteActions = map[string]bool{
	"CASCADE":     true,
	"SET NULL":    true,
	"SET DEFAULT": true,
	"RESTRICT":    true,
	"NO ACTION":   true,
}

// Ident validates name and returns it double-quoted for use in a statement
func Ident(name string) (string, error) {
	if len(name) > maxIdentifierLength || !identPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	if strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return "", fmt.Errorf("%w: %q uses the reserved sqlite_ prefix", ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

// ColumnType validates a declared SQL type such as TEXT, INTEGER or VARCHAR(255)
func ColumnType(t string) (string, error) {
	t = strings.TrimSpace(t)
	if !typePattern.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	return t, nil
}

// DefaultLiteral validates a default value. Accepted forms are numbers,
// single-quoted strings, blob literals and the NULL/TRUE/FALSE/CURRENT_* keywords.
func DefaultLiteral(v string) (string, error) {
	v = strings.TrimSpace(v)
	switch {
	case keywordDefaults[strings.ToUpper(v)]:
		return strings.ToUpper(v), nil
	case numericPattern.MatchString(v), stringPattern.MatchString(v), blobPattern.MatchString(v):
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDefault, v)
}

// OnDeleteAction validates and normalizes an ON DELETE action
func OnDeleteAction(a string) (string, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(a), " "))
	if !deleteActions[norm] {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, a)
	}
	return norm, nil
}

// Quote renders s as a single-quoted SQL string literal
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// columnClause renders the definition of one column: name, type and constraints
func columnClause(col schema.Column) (string, error) {
	name, err := Ident(col.Name)
	if err != nil {
		return "", err
	}
	typ, err := ColumnType(col.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", col.Name, err)
	}

	parts := []string{name, typ}
	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != nil {
		lit, err := DefaultLiteral(*col.Default)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		parts = append(parts, "DEFAULT "+lit)
	}
	return strings.Join(parts, " "), nil
}

// foreignKeyClause renders a table-level FOREIGN KEY constraint
func foreignKeyClause(fk schema.ForeignKey) (string, error) {
	col, err := Ident(fk.Column)
	if err != nil {
		return "", err
	}
	refTable, err := Ident(fk.Reference.Table)
	if err != nil {
		return "", err
	}
	refCol, err := Ident(fk.Reference.Column)
	if err != nil {
		return "", err
	}

	clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", col, refTable, refCol)
	if fk.OnDelete != "" {
		action, err := OnDeleteAction(fk.OnDelete)
		if err != nil {
			return "", fmt.Errorf("foreign key %s: %w", fk.Column, err)
		}
		clause += " ON DELETE " + action
	}
	return clause, nil
}

// CreateTable renders CREATE TABLE IF NOT EXISTS for the table, without its indexes
func CreateTable(t schema.TableSchema) (string, error) {
	table, err := Ident(t.Name)
	if err != nil {
		return "", err
	}

	clauses := make([]string, 0, len(t.Columns)+len(t.ForeignKeys))
	for _, col := range t.Columns {
		c, err := columnClause(col)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, c)
	}
	for _, fk := range t.ForeignKeys {
		c, err := foreignKeyClause(fk)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, c)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", table, strings.Join(clauses, ",\n  ")), nil
}

// CreateIndex renders CREATE [UNIQUE] INDEX IF NOT EXISTS for one index of table
func CreateIndex(table string, idx schema.Index) (string, error) {
	tbl, err := Ident(table)
	if err != nil {
		return "", err
	}
	name, err := Ident(idx.Name)
	if err != nil {
		return "", err
	}
	if len(idx.Columns) == 0 {
		return "", fmt.Errorf("index %s has no columns", idx.Name)
	}

	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		if cols[i], err = Ident(c); err != nil {
			return "", err
		}
	}

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)", unique, name, tbl, strings.Join(cols, ", ")), nil
}

// DropIndex renders DROP INDEX IF EXISTS
func DropIndex(name string) (string, error) {
	n, err := Ident(name)
	if err != nil {
		return "", err
	}
	return "DROP INDEX IF EXISTS " + n, nil
}

// AddColumn renders ALTER TABLE ... ADD COLUMN for a column missing from a live table.
//
// SQLite rejects adding a NOT NULL column without a default when rows exist,
// so a NOT NULL column declared without a default gets an empty-string default.
func AddColumn(table string, col schema.Column) (string, error) {
	if col.PrimaryKey {
		return "", fmt.Errorf("column %s.%s: %w", table, col.Name, ErrPrimaryKeyColumn)
	}

	tbl, err := Ident(table)
	if err != nil {
		return "", err
	}
	name, err := Ident(col.Name)
	if err != nil {
		return "", err
	}
	typ, err := ColumnType(col.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", col.Name, err)
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tbl, name, typ)

	var def string
	if col.Default != nil {
		if def, err = DefaultLiteral(*col.Default); err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
	}

	switch {
	case col.NotNull && col.Default != nil:
		stmt += " DEFAULT " + def + " NOT NULL"
	case col.NotNull:
		stmt += " DEFAULT '' NOT NULL"
	case col.Default != nil:
		stmt += " DEFAULT " + def
	}
	return stmt, nil
}
