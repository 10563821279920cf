// Package migrate reconciles the live SQLite structure with a schema registry.
//
// Tables are processed one at a time in registry order. Each table's DDL runs
// in its own transaction: either every statement of the batch is applied or
// none is. The first failing table aborts the pass.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/schema"
)

// ErrIndexNameTaken is returned when a declared index name already belongs to another table
var ErrIndexNameTaken = errors.New("index name already used by another table")

// Store is the part of the connection manager the reconciler needs
type Store interface {
	db.Querier
	Run(ctx context.Context, query string, args ...any) (db.Result, error)
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// State is where a table ended up after a reconciliation pass
type State string

const (
	StateReady  State = "ready"
	StateFailed State = "failed"
)

// TableResult describes what happened to one table
type TableResult struct {
	Table    string
	Action   Action
	State    State
	Executed []string
	Drift    []string
	Err      error
}

// Report is the outcome of a reconciliation pass, in registry order.
// After a failure it ends with the failed table.
type Report struct {
	Tables []TableResult
}

// Executed returns the number of DDL statements applied during the pass
func (r *Report) Executed() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Executed)
	}
	return n
}

// Reconciler applies schema registries to a database
type Reconciler struct {
	store        Store
	introspector *db.Introspector
	logger       *slog.Logger
}

// NewReconciler creates a reconciler working through store
func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		store:        store,
		introspector: db.NewIntrospector(store),
		logger:       logger,
	}
}

// Reconcile brings every registered table in line with its declaration.
//
// There is no retry and no continuation past a failed table: the returned
// error carries the table name and the batch of that table has been rolled
// back. Tables reconciled before it stay committed.
func (r *Reconciler) Reconcile(ctx context.Context, registry *schema.Registry) (*Report, error) {
	report := &Report{}

	for _, table := range registry.Tables() {
		res, err := r.reconcileTable(ctx, table)
		report.Tables = append(report.Tables, res)
		if err != nil {
			r.logger.Error("schema reconciliation aborted", "table", table.Name, "error", err)
			return report, err
		}
	}

	r.logger.Info("schema reconciliation completed", "tables", len(report.Tables), "statements", report.Executed())
	return report, nil
}

// reconcileTable runs the introspect, diff and apply steps for one table inside one transaction
func (r *Reconciler) reconcileTable(ctx context.Context, table schema.TableSchema) (TableResult, error) {
	res := TableResult{Table: table.Name, Action: ActionNone}

	err := r.store.InTx(ctx, func(ctx context.Context) error {
		live, err := r.introspector.Table(ctx, table.Name)
		if err != nil {
			return err
		}

		plan, err := Diff(table, live)
		if err != nil {
			return &db.MigrationError{Table: table.Name, Err: err}
		}
		res.Action = plan.Action
		res.Drift = plan.Drift

		for _, d := range plan.Drift {
			r.logger.Warn("schema drift left in place", "table", table.Name, "detail", d)
		}

		switch plan.Action {
		case ActionCreate:
			r.logger.Info("creating table and indexes", "table", table.Name)
		case ActionAlter:
			r.logger.Info("updating existing table", "table", table.Name)
		}

		for _, stmt := range plan.Statements {
			if err := r.checkIndexOwner(ctx, table.Name, stmt); err != nil {
				return err
			}
			r.logStatement(table.Name, stmt)
			if _, err := r.store.Run(ctx, stmt.SQL); err != nil {
				return &db.MigrationError{Table: table.Name, Statement: stmt.SQL, Err: err}
			}
			res.Executed = append(res.Executed, stmt.SQL)
		}
		return nil
	})
	if err != nil {
		// Begin and Commit failures come back from InTx unwrapped
		var migErr *db.MigrationError
		var inErr *db.IntrospectionError
		if !errors.As(err, &migErr) && !errors.As(err, &inErr) {
			err = &db.MigrationError{Table: table.Name, Err: err}
		}
		res.State = StateFailed
		res.Executed = nil
		res.Err = err
		return res, err
	}

	res.State = StateReady
	r.logger.Debug("table ready", "table", table.Name, "action", string(res.Action))
	return res, nil
}

// checkIndexOwner rejects creating an index whose name is held by another
// table. CREATE INDEX IF NOT EXISTS would otherwise succeed without creating it.
func (r *Reconciler) checkIndexOwner(ctx context.Context, table string, stmt Statement) error {
	if stmt.Kind != KindCreateIndex {
		return nil
	}
	owner, found, err := r.introspector.IndexTable(ctx, stmt.Object)
	if err != nil {
		return err
	}
	if found && owner != table {
		return &db.MigrationError{
			Table:     table,
			Statement: stmt.SQL,
			Err:       fmt.Errorf("%w: %s is on %s", ErrIndexNameTaken, stmt.Object, owner),
		}
	}
	return nil
}

func (r *Reconciler) logStatement(table string, stmt Statement) {
	switch stmt.Kind {
	case KindAddColumn:
		r.logger.Info("adding column", "table", table, "column", stmt.Object)
	case KindDropIndex:
		r.logger.Info("dropping obsolete index", "table", table, "index", stmt.Object)
	case KindCreateIndex:
		r.logger.Info("creating index", "table", table, "index", stmt.Object)
	}
}

// Plan computes the plan for one table against the current live state without
// applying it
func (r *Reconciler) Plan(ctx context.Context, table schema.TableSchema) (*TablePlan, error) {
	live, err := r.introspector.Table(ctx, table.Name)
	if err != nil {
		return nil, err
	}

	plan, err := Diff(table, live)
	if err != nil {
		return nil, &db.MigrationError{Table: table.Name, Err: err}
	}
	for _, stmt := range plan.Statements {
		if err := r.checkIndexOwner(ctx, table.Name, stmt); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// PlanAll is a dry run of Reconcile: it returns the plan of every registered
// table and executes nothing.
func (r *Reconciler) PlanAll(ctx context.Context, registry *schema.Registry) ([]*TablePlan, error) {
	plans := make([]*TablePlan, 0, registry.Len())
	for _, table := range registry.Tables() {
		plan, err := r.Plan(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to plan table %s: %w", table.Name, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
