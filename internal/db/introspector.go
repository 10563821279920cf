package db

import (
	"context"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// Querier is the read side of the data-access contract
type Querier interface {
	Get(ctx context.Context, query string, args ...any) (Row, bool, error)
	All(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Introspector reads live catalog metadata from SQLite.
//
// It reads through the same handle the reconciler writes through, so inside a
// reconciliation transaction it sees that transaction's uncommitted changes.
type Introspector struct {
	q Querier
}

// NewIntrospector creates a new SQLite introspector
func NewIntrospector(q Querier) *Introspector {
	return &Introspector{q: q}
}

// TableExists reports whether a table with the given name exists
func (i *Introspector) TableExists(ctx context.Context, name string) (bool, error) {
	_, found, err := i.q.Get(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	if err != nil {
		return false, &IntrospectionError{Table: name, Err: err}
	}
	return found, nil
}

// IndexTable returns the table an index with the given name belongs to.
// Index names share one namespace across the whole database.
func (i *Introspector) IndexTable(ctx context.Context, index string) (string, bool, error) {
	row, found, err := i.q.Get(ctx,
		`SELECT tbl_name FROM sqlite_master WHERE type = 'index' AND name = ?`, index)
	if err != nil {
		return "", false, &IntrospectionError{Table: index, Err: err}
	}
	if !found {
		return "", false, nil
	}
	return row.String("tbl_name"), true, nil
}

// TableNames returns every user table in the database, sorted by name
func (i *Introspector) TableNames(ctx context.Context) ([]string, error) {
	rows, err := i.q.All(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, &IntrospectionError{Table: "*", Err: err}
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.String("name"))
	}
	return names, nil
}

// Table reads everything known about one table. A missing table yields
// a LiveTable with Exists set to false and no columns or indexes.
func (i *Introspector) Table(ctx context.Context, name string) (*schema.LiveTable, error) {
	table := &schema.LiveTable{Name: name}

	exists, err := i.TableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return table, nil
	}
	table.Exists = true

	if table.Columns, err = i.Columns(ctx, name); err != nil {
		return nil, err
	}
	if table.Indexes, err = i.Indexes(ctx, name); err != nil {
		return nil, err
	}
	if table.ForeignKeys, err = i.ForeignKeys(ctx, name); err != nil {
		return nil, err
	}
	return table, nil
}

// Columns returns the live columns in declaration order; empty if the table is absent
func (i *Introspector) Columns(ctx context.Context, name string) ([]schema.LiveColumn, error) {
	rows, err := i.q.All(ctx, `
		SELECT name, type, "notnull" AS not_null, dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid
	`, name)
	if err != nil {
		return nil, &IntrospectionError{Table: name, Err: err}
	}

	columns := make([]schema.LiveColumn, 0, len(rows))
	for _, r := range rows {
		columns = append(columns, schema.LiveColumn{
			Name:       r.String("name"),
			Type:       r.String("type"),
			Nullable:   !r.Bool("not_null"),
			Default:    r.NullString("dflt_value"),
			PrimaryKey: r.Int64("pk") > 0,
		})
	}
	return columns, nil
}

// Indexes returns the user-created indexes of a table.
//
// Indexes SQLite generates for PRIMARY KEY and UNIQUE constraints (origin "pk"
// and "u", named sqlite_autoindex_*) are skipped: they cannot be dropped and
// are never diffed against the declared indexes.
func (i *Introspector) Indexes(ctx context.Context, name string) ([]schema.LiveIndex, error) {
	rows, err := i.q.All(ctx, `
		SELECT name, "unique" AS is_unique, origin
		FROM pragma_index_list(?)
		ORDER BY name
	`, name)
	if err != nil {
		return nil, &IntrospectionError{Table: name, Err: err}
	}

	indexes := make([]schema.LiveIndex, 0, len(rows))
	for _, r := range rows {
		idxName := r.String("name")

		// Skip auto-generated constraint indexes
		if r.String("origin") != "c" || strings.HasPrefix(idxName, "sqlite_autoindex") {
			continue
		}

		cols, err := i.indexColumns(ctx, idxName)
		if err != nil {
			return nil, &IntrospectionError{Table: name, Err: err}
		}

		indexes = append(indexes, schema.LiveIndex{
			Name:    idxName,
			Columns: cols,
			Unique:  r.Bool("is_unique"),
		})
	}
	return indexes, nil
}

// indexColumns returns the column names of an index in key order
func (i *Introspector) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := i.q.All(ctx, `
		SELECT name
		FROM pragma_index_info(?)
		ORDER BY seqno
	`, index)
	if err != nil {
		return nil, err
	}

	var columns []string
	for _, r := range rows {
		// Expression index terms have no column name
		if c := r.NullString("name"); c != nil {
			columns = append(columns, *c)
		}
	}
	return columns, nil
}

// ForeignKeys returns the foreign keys declared on a table
func (i *Introspector) ForeignKeys(ctx context.Context, name string) ([]schema.LiveForeignKey, error) {
	rows, err := i.q.All(ctx, `
		SELECT "table" AS target_table, "from" AS source_column, "to" AS target_column, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq
	`, name)
	if err != nil {
		return nil, &IntrospectionError{Table: name, Err: err}
	}

	fks := make([]schema.LiveForeignKey, 0, len(rows))
	for _, r := range rows {
		fks = append(fks, schema.LiveForeignKey{
			Column:       r.String("source_column"),
			TargetTable:  r.String("target_table"),
			TargetColumn: r.String("target_column"),
			OnDelete:     r.String("on_delete"),
		})
	}
	return fks, nil
}
