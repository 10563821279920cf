package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// MultiFileFormatter writes one file per live table plus an overview into a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) (*MultiFileFormatter, error) {
	switch format {
	case "":
		format = formatText
	case formatText, formatMarkdown:
	default:
		return nil, fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", format)
	}
	return &MultiFileFormatter{OutputDir: outputDir, OutputFormat: format}, nil
}

// FormatTables writes _overview plus <table> files for every table
func (f *MultiFileFormatter) FormatTables(tables []schema.LiveTable) error {
	if err := os.MkdirAll(f.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile("_overview", func(w io.Writer) { f.writeOverview(w, tables) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range tables {
		err := f.writeFile(table.Name, func(w io.Writer) {
			f.writeTable(w, table, incomingReferences(table.Name, tables))
		})
		if err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}
	return nil
}

func (f *MultiFileFormatter) writeFile(name string, write func(w io.Writer)) error {
	file, err := os.Create(filepath.Join(f.OutputDir, name+f.fileExtension()))
	if err != nil {
		return err
	}
	write(file)
	return file.Close()
}

func (f *MultiFileFormatter) writeOverview(w io.Writer, tables []schema.LiveTable) {
	sorted := slices.Clone(tables)
	slices.SortFunc(sorted, func(a, b schema.LiveTable) int { return strings.Compare(a.Name, b.Name) })

	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(w, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(w, "Each table has a corresponding file: `<table_name>%s`\n\n", f.fileExtension())
		_, _ = fmt.Fprintf(w, "## Tables\n\n")
	} else {
		_, _ = fmt.Fprintf(w, "SCHEMA OVERVIEW\n")
		_, _ = fmt.Fprintf(w, "Each table has a file: <table_name>%s\n\n", f.fileExtension())
	}

	for _, table := range sorted {
		if f.OutputFormat == formatMarkdown {
			_, _ = fmt.Fprintf(w, "- **%s**", table.Name)
		} else {
			_, _ = fmt.Fprint(w, table.Name)
		}

		// Outgoing references
		if len(table.ForeignKeys) > 0 {
			targets := make([]string, 0, len(table.ForeignKeys))
			for _, fk := range table.ForeignKeys {
				targets = append(targets, fk.TargetTable)
			}
			_, _ = fmt.Fprintf(w, " (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintln(w)
	}
}

func (f *MultiFileFormatter) writeTable(w io.Writer, table schema.LiveTable, incoming []incomingReference) {
	if f.OutputFormat == formatMarkdown {
		NewMarkdownFormatter(w).formatTable(table)
		if len(incoming) > 0 {
			_, _ = fmt.Fprintf(w, "### Referenced by\n\n")
			for _, ref := range incoming {
				_, _ = fmt.Fprintf(w, "- %s.%s → %s%s\n", ref.SourceTable, ref.SourceColumn, ref.TargetColumn, onDeleteSuffix(ref.OnDelete))
			}
			_, _ = fmt.Fprintln(w)
		}
		return
	}

	NewTextFormatter(w).formatTable(table)
	if len(incoming) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "  REFERENCED BY:")
		for _, ref := range incoming {
			_, _ = fmt.Fprintf(w, "    %s.%s → %s%s\n", ref.SourceTable, ref.SourceColumn, ref.TargetColumn, onDeleteSuffix(ref.OnDelete))
		}
	}
}

// incomingReference is a foreign key of another table pointing at this one
type incomingReference struct {
	SourceTable  string
	SourceColumn string
	TargetColumn string
	OnDelete     string
}

// incomingReferences finds all foreign keys pointing to the named table
func incomingReferences(name string, tables []schema.LiveTable) []incomingReference {
	var incoming []incomingReference
	for _, table := range tables {
		for _, fk := range table.ForeignKeys {
			if fk.TargetTable == name {
				incoming = append(incoming, incomingReference{
					SourceTable:  table.Name,
					SourceColumn: fk.Column,
					TargetColumn: fk.TargetColumn,
					OnDelete:     fk.OnDelete,
				})
			}
		}
	}
	return incoming
}

func (f *MultiFileFormatter) fileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}
