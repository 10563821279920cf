package schema

// TableSchema is the desired structure of one table
type TableSchema struct {
	Name        string       `yaml:"name"`
	Columns     []Column     `yaml:"columns"`
	Indexes     []Index      `yaml:"indexes,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreignKeys,omitempty"`
}

// Column is a declared table column.
// Default holds a SQL literal (e.g. CURRENT_TIMESTAMP, 0, 'draft'), not a Go value.
type Column struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	PrimaryKey bool    `yaml:"primaryKey,omitempty"`
	NotNull    bool    `yaml:"notNull,omitempty"`
	Default    *string `yaml:"default,omitempty"`
}

// Index is a declared index. Name is unique across the whole database.
type Index struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// ForeignKey is a declared single-column foreign key
type ForeignKey struct {
	Column    string    `yaml:"column"`
	Reference Reference `yaml:"reference"`
	OnDelete  string    `yaml:"onDelete,omitempty"`
}

// Reference is the target of a foreign key
type Reference struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// LiveTable is what the database currently holds for one table.
// It is rebuilt on every reconciliation pass.
type LiveTable struct {
	Name        string
	Exists      bool
	Columns     []LiveColumn
	Indexes     []LiveIndex
	ForeignKeys []LiveForeignKey
}

// LiveColumn represents a column read from the catalog
type LiveColumn struct {
	Name       string
	Type       string
	Nullable   bool
	Default    *string
	PrimaryKey bool
}

// LiveIndex represents a user-created index read from the catalog
type LiveIndex struct {
	Name    string
	Columns []string
	Unique  bool
}

// LiveForeignKey represents a foreign key read from the catalog
type LiveForeignKey struct {
	Column       string
	TargetTable  string
	TargetColumn string
	OnDelete     string
}

// Default returns a pointer to the literal, for building Column values inline
func Default(literal string) *string {
	return &literal
}

// Column returns the declared column with the given name, or nil
func (t *TableSchema) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasIndex reports whether an index with the given name is declared
func (t *TableSchema) HasIndex(name string) bool {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

// Column returns the live column with the given name, or nil
func (t *LiveTable) Column(name string) *LiveColumn {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasIndex reports whether the live table carries an index with the given name
func (t *LiveTable) HasIndex(name string) bool {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

// PrimaryKey returns the live primary key column names
func (t *LiveTable) PrimaryKey() []string {
	var pk []string
	for _, col := range t.Columns {
		if col.PrimaryKey {
			pk = append(pk, col.Name)
		}
	}
	return pk
}

func (t TableSchema) clone() TableSchema {
	out := TableSchema{Name: t.Name}
	if t.Columns != nil {
		out.Columns = make([]Column, len(t.Columns))
		for i, c := range t.Columns {
			if c.Default != nil {
				d := *c.Default
				c.Default = &d
			}
			out.Columns[i] = c
		}
	}
	if t.Indexes != nil {
		out.Indexes = make([]Index, len(t.Indexes))
		for i, idx := range t.Indexes {
			idx.Columns = append([]string(nil), idx.Columns...)
			out.Indexes[i] = idx
		}
	}
	if t.ForeignKeys != nil {
		out.ForeignKeys = append([]ForeignKey(nil), t.ForeignKeys...)
	}
	return out
}
