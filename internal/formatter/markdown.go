package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/migrate"
	"github.com/tordrt/schemasync/internal/schema"
)

// MarkdownFormatter formats output as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatTables writes the live tables in markdown format
func (f *MarkdownFormatter) FormatTables(tables []schema.LiveTable) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range tables {
		f.formatTable(table)
	}
	return nil
}

func (f *MarkdownFormatter) formatTable(table schema.LiveTable) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)

	if !table.Exists {
		_, _ = fmt.Fprintln(f.writer, "_Table does not exist._")
		_, _ = fmt.Fprintln(f.writer)
		return
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	for _, col := range table.Columns {
		if c := formatConstraints(col); c != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Type, c)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, fk := range table.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s%s\n", fk.Column, fk.TargetTable, fk.TargetColumn, onDeleteSuffix(fk.OnDelete))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Indexes")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			if idx.Unique {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s), unique\n", idx.Name, strings.Join(idx.Columns, ", "))
			} else {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n", idx.Name, strings.Join(idx.Columns, ", "))
			}
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func formatConstraints(col schema.LiveColumn) string {
	var constraints []string

	if col.PrimaryKey {
		constraints = append(constraints, "PK")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.Default != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	return strings.Join(constraints, ", ")
}

// FormatPlans writes the migration plan as markdown with SQL code blocks
func (f *MarkdownFormatter) FormatPlans(plans []*migrate.TablePlan) error {
	_, _ = fmt.Fprintln(f.writer, "# Migration Plan")
	_, _ = fmt.Fprintln(f.writer)

	for _, plan := range plans {
		_, _ = fmt.Fprintf(f.writer, "## %s (%s)\n\n", plan.Table, plan.Action)

		if !plan.Empty() {
			_, _ = fmt.Fprintln(f.writer, "```sql")
			for _, stmt := range plan.Statements {
				_, _ = fmt.Fprintf(f.writer, "%s;\n", stmt.SQL)
			}
			_, _ = fmt.Fprintln(f.writer, "```")
			_, _ = fmt.Fprintln(f.writer)
		}

		if len(plan.Drift) > 0 {
			_, _ = fmt.Fprintln(f.writer, "### Left in place")
			_, _ = fmt.Fprintln(f.writer)
			for _, d := range plan.Drift {
				_, _ = fmt.Fprintf(f.writer, "- %s\n", d)
			}
			_, _ = fmt.Fprintln(f.writer)
		}
	}
	return nil
}
