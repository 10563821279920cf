// Package formatter renders live tables and migration plans for the CLI.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/migrate"
	"github.com/tordrt/schemasync/internal/schema"
)

// Formatter renders live tables and migration plans
type Formatter interface {
	FormatTables(tables []schema.LiveTable) error
	FormatPlans(plans []*migrate.TablePlan) error
}

// New returns the formatter for the named format ("text" or "markdown")
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case formatText, "":
		return NewTextFormatter(w), nil
	case formatMarkdown:
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", format)
	}
}

// TextFormatter formats output as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// FormatTables writes the live tables in compact text format
func (f *TextFormatter) FormatTables(tables []schema.LiveTable) error {
	for i, table := range tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTable(table)
	}
	return nil
}

func (f *TextFormatter) formatTable(table schema.LiveTable) {
	if !table.Exists {
		_, _ = fmt.Fprintf(f.writer, "TABLE %s (missing)\n", table.Name)
		return
	}

	// Table header with primary key
	pkStr := ""
	if pk := table.PrimaryKey(); len(pk) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(pk, ", "))
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s\n", table.Name, pkStr)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatColumn(col))
	}

	if len(table.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  RELATIONS:")
		for _, fk := range table.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "    %s → %s.%s%s\n", fk.Column, fk.TargetTable, fk.TargetColumn, onDeleteSuffix(fk.OnDelete))
		}
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			unique := ""
			if idx.Unique {
				unique = " UNIQUE"
			}
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
		}
	}
}

// FormatPlans writes one block per table plan
func (f *TextFormatter) FormatPlans(plans []*migrate.TablePlan) error {
	for i, plan := range plans {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer)
		}
		_, _ = fmt.Fprintf(f.writer, "TABLE %s: %s\n", plan.Table, plan.Action)
		for _, stmt := range plan.Statements {
			_, _ = fmt.Fprintf(f.writer, "  %s;\n", indent(stmt.SQL, "  "))
		}
		for _, d := range plan.Drift {
			_, _ = fmt.Fprintf(f.writer, "  ! %s\n", d)
		}
	}
	return nil
}

func formatColumn(col schema.LiveColumn) string {
	parts := []string{col.Name + ":", col.Type}

	if col.PrimaryKey {
		parts = append(parts, "PK")
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	return strings.Join(parts, " ")
}

func onDeleteSuffix(action string) string {
	if action == "" || action == "NO ACTION" {
		return ""
	}
	return " ON DELETE " + action
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
