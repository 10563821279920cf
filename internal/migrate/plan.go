package migrate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tordrt/schemasync/internal/ddl"
	"github.com/tordrt/schemasync/internal/schema"
)

// Action is what a plan does to a table
type Action string

const (
	ActionNone   Action = "none"
	ActionCreate Action = "create"
	ActionAlter  Action = "alter"
)

// StatementKind classifies a planned DDL statement
type StatementKind string

const (
	KindCreateTable StatementKind = "create_table"
	KindCreateIndex StatementKind = "create_index"
	KindAddColumn   StatementKind = "add_column"
	KindDropIndex   StatementKind = "drop_index"
)

// Statement is one DDL statement of a table plan
type Statement struct {
	Kind   StatementKind
	Object string // table, column or index name
	SQL    string
}

// TablePlan is the DDL needed to bring one live table in line with its declaration.
// Drift lists differences that are reported but deliberately left alone.
type TablePlan struct {
	Table      string
	Action     Action
	Statements []Statement
	Drift      []string
}

// Empty reports whether the plan changes nothing
func (p *TablePlan) Empty() bool {
	return len(p.Statements) == 0
}

// SQL returns the statements as plain SQL in execution order
func (p *TablePlan) SQL() []string {
	out := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		out[i] = s.SQL
	}
	return out
}

// Diff computes the plan for one table. It does not touch the database.
func Diff(desired schema.TableSchema, live *schema.LiveTable) (*TablePlan, error) {
	if live == nil || !live.Exists {
		return planCreate(desired)
	}
	return planAlter(desired, live)
}

// planCreate builds the single batch that creates an absent table and its indexes
func planCreate(t schema.TableSchema) (*TablePlan, error) {
	plan := &TablePlan{Table: t.Name, Action: ActionCreate}

	create, err := ddl.CreateTable(t)
	if err != nil {
		return nil, err
	}
	plan.Statements = append(plan.Statements, Statement{Kind: KindCreateTable, Object: t.Name, SQL: create})

	for _, idx := range t.Indexes {
		stmt, err := ddl.CreateIndex(t.Name, idx)
		if err != nil {
			return nil, err
		}
		plan.Statements = append(plan.Statements, Statement{Kind: KindCreateIndex, Object: idx.Name, SQL: stmt})
	}
	return plan, nil
}

// planAlter diffs columns and indexes of an existing table.
// Columns are only ever added; indexes are matched by name alone.
func planAlter(t schema.TableSchema, live *schema.LiveTable) (*TablePlan, error) {
	plan := &TablePlan{Table: t.Name, Action: ActionNone}

	for _, col := range t.Columns {
		lc := live.Column(col.Name)
		if lc == nil {
			stmt, err := ddl.AddColumn(t.Name, col)
			if err != nil {
				return nil, err
			}
			plan.Statements = append(plan.Statements, Statement{Kind: KindAddColumn, Object: col.Name, SQL: stmt})
			continue
		}
		plan.Drift = append(plan.Drift, columnDrift(t.Name, col, lc)...)
	}

	for _, lc := range live.Columns {
		if t.Column(lc.Name) == nil {
			plan.Drift = append(plan.Drift, fmt.Sprintf("column %s.%s exists but is not declared; columns are never removed", t.Name, lc.Name))
		}
	}

	for _, li := range live.Indexes {
		if t.HasIndex(li.Name) {
			continue
		}
		stmt, err := ddl.DropIndex(li.Name)
		if err != nil {
			return nil, err
		}
		plan.Statements = append(plan.Statements, Statement{Kind: KindDropIndex, Object: li.Name, SQL: stmt})
	}

	for _, idx := range t.Indexes {
		if !live.HasIndex(idx.Name) {
			stmt, err := ddl.CreateIndex(t.Name, idx)
			if err != nil {
				return nil, err
			}
			plan.Statements = append(plan.Statements, Statement{Kind: KindCreateIndex, Object: idx.Name, SQL: stmt})
			continue
		}
		plan.Drift = append(plan.Drift, indexDrift(idx, live)...)
	}

	if len(plan.Statements) > 0 {
		plan.Action = ActionAlter
	}
	return plan, nil
}

func columnDrift(table string, want schema.Column, have *schema.LiveColumn) []string {
	var drift []string
	if !strings.EqualFold(strings.TrimSpace(want.Type), strings.TrimSpace(have.Type)) {
		drift = append(drift, fmt.Sprintf("column %s.%s is %s, declared %s; types are never altered", table, want.Name, have.Type, want.Type))
	}
	if want.NotNull == have.Nullable {
		drift = append(drift, fmt.Sprintf("column %s.%s nullability differs from its declaration; constraints are never altered", table, want.Name))
	}
	if want.PrimaryKey != have.PrimaryKey {
		drift = append(drift, fmt.Sprintf("column %s.%s primary key differs from its declaration; primary keys are never altered", table, want.Name))
	}
	return drift
}

func indexDrift(want schema.Index, live *schema.LiveTable) []string {
	for _, li := range live.Indexes {
		if li.Name != want.Name {
			continue
		}
		if !slices.Equal(li.Columns, want.Columns) || li.Unique != want.Unique {
			return []string{fmt.Sprintf("index %s differs from its declaration; rename it to have it recreated", want.Name)}
		}
	}
	return nil
}
