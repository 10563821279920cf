// Package schema holds the declared table definitions and the live catalog
// state they are reconciled against.
//
// A Registry is built once at startup from an explicit list of tables and is
// never mutated afterwards. Tables are reconciled in registration order, so a
// table referenced by a foreign key must be registered before the table that
// references it.
package schema

import (
	"fmt"
	"strings"
)

// ValidationError describes every problem found in a set of table definitions
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schema registry: %s", strings.Join(e.Problems, "; "))
}

// Registry is an immutable, ordered collection of table definitions
type Registry struct {
	tables []TableSchema
	byName map[string]int
}

// NewRegistry validates the given tables and freezes them in the given order
func NewRegistry(tables ...TableSchema) (*Registry, error) {
	r := &Registry{
		tables: make([]TableSchema, 0, len(tables)),
		byName: make(map[string]int, len(tables)),
	}

	var problems []string
	indexOwners := make(map[string]string)
	declared := make(map[string]bool, len(tables))
	for _, t := range tables {
		declared[t.Name] = true
	}

	for _, t := range tables {
		if t.Name == "" {
			problems = append(problems, "table with empty name")
			continue
		}
		if _, dup := r.byName[t.Name]; dup {
			problems = append(problems, fmt.Sprintf("table %s declared twice", t.Name))
			continue
		}

		problems = append(problems, validateTable(t, r.byName, declared, indexOwners)...)

		r.byName[t.Name] = len(r.tables)
		r.tables = append(r.tables, t.clone())
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on invalid definitions.
// It is meant for statically declared registries.
func MustRegistry(tables ...TableSchema) *Registry {
	r, err := NewRegistry(tables...)
	if err != nil {
		panic(err)
	}
	return r
}

// validateTable checks one table; earlier holds the tables registered before it
// and declared every table name in the registry.
func validateTable(t TableSchema, earlier map[string]int, declared map[string]bool, indexOwners map[string]string) []string {
	var problems []string

	if len(t.Columns) == 0 {
		problems = append(problems, fmt.Sprintf("table %s has no columns", t.Name))
	}

	seen := make(map[string]bool, len(t.Columns))
	pkCount := 0
	for _, col := range t.Columns {
		switch {
		case col.Name == "":
			problems = append(problems, fmt.Sprintf("table %s has a column with empty name", t.Name))
		case seen[col.Name]:
			problems = append(problems, fmt.Sprintf("column %s.%s declared twice", t.Name, col.Name))
		}
		seen[col.Name] = true

		if col.Type == "" {
			problems = append(problems, fmt.Sprintf("column %s.%s has no type", t.Name, col.Name))
		}
		if col.PrimaryKey {
			pkCount++
		}
	}
	if pkCount > 1 {
		problems = append(problems, fmt.Sprintf("table %s declares %d primary key columns (composite keys are not supported)", t.Name, pkCount))
	}

	for _, idx := range t.Indexes {
		if idx.Name == "" {
			problems = append(problems, fmt.Sprintf("table %s has an index with empty name", t.Name))
			continue
		}
		if owner, dup := indexOwners[idx.Name]; dup {
			problems = append(problems, fmt.Sprintf("index %s declared on both %s and %s", idx.Name, owner, t.Name))
		}
		indexOwners[idx.Name] = t.Name

		if len(idx.Columns) == 0 {
			problems = append(problems, fmt.Sprintf("index %s has no columns", idx.Name))
		}
		for _, c := range idx.Columns {
			if !seen[c] {
				problems = append(problems, fmt.Sprintf("index %s references unknown column %s.%s", idx.Name, t.Name, c))
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		if !seen[fk.Column] {
			problems = append(problems, fmt.Sprintf("foreign key on unknown column %s.%s", t.Name, fk.Column))
		}
		if fk.Reference.Table == "" || fk.Reference.Column == "" {
			problems = append(problems, fmt.Sprintf("foreign key %s.%s has an incomplete reference", t.Name, fk.Column))
			continue
		}
		// Self references and external tables are left to the engine.
		if fk.Reference.Table == t.Name {
			continue
		}
		if _, ok := earlier[fk.Reference.Table]; !ok && declared[fk.Reference.Table] {
			problems = append(problems, fmt.Sprintf("table %s references %s, which must be registered first", t.Name, fk.Reference.Table))
		}
	}

	return problems
}

// Tables returns a copy of the registered tables in registration order
func (r *Registry) Tables() []TableSchema {
	out := make([]TableSchema, len(r.tables))
	for i, t := range r.tables {
		out[i] = t.clone()
	}
	return out
}

// Lookup returns a copy of the named table
func (r *Registry) Lookup(name string) (TableSchema, bool) {
	i, ok := r.byName[name]
	if !ok {
		return TableSchema{}, false
	}
	return r.tables[i].clone(), true
}

// Names returns the table names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.tables))
	for i, t := range r.tables {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of registered tables
func (r *Registry) Len() int {
	return len(r.tables)
}
