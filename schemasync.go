// Package schemasync keeps an embedded SQLite database in line with a
// declarative schema registry and hands out the reconciled connection.
//
// At startup, every table of the registry is compared with the live database
// in registration order. Missing tables are created with their indexes and
// foreign keys; existing tables get missing columns added and their indexes
// brought in line with the declaration. Each table is migrated in its own
// transaction, so a failure never leaves a half-migrated table behind.
//
// # Quick Start
//
//	dal, report, err := schemasync.Open(ctx, "database.sqlite", nil)
//	if err != nil {
//		log.Fatal(err) // reconciliation failures are fatal to startup
//	}
//	defer dal.Close()
//	fmt.Printf("%d statements applied\n", report.Executed())
//
// # What Is Never Changed
//
// Columns are only ever added. Existing columns are never dropped, retyped or
// have their constraints changed; such differences are reported as drift.
// Indexes are identified by name only: changing the columns of a declared
// index has no effect until the index is renamed.
package schemasync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/migrate"
	"github.com/tordrt/schemasync/internal/schema"
	"github.com/tordrt/schemasync/internal/video"
)

// Options configures Open and Plan.
//
// All fields are optional. If not specified:
//   - Registry: the video catalog tables (videos, shared_links)
//   - Pragmas: foreign keys on, WAL journal, NORMAL sync, 2 MiB page cache
//   - Logger: logs are discarded
type Options struct {
	// Registry is the desired schema. Parents must be registered before
	// the tables that reference them.
	Registry *schema.Registry

	// Pragmas are the session settings applied when the database is opened.
	Pragmas *db.Pragmas

	// Logger receives one record per DDL statement and per table.
	Logger *slog.Logger
}

func (o *Options) withDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Registry == nil {
		out.Registry = video.Registry()
	}
	if out.Pragmas == nil {
		p := db.DefaultPragmas()
		out.Pragmas = &p
	}
	if out.Logger == nil {
		out.Logger = slog.New(slog.DiscardHandler)
	}
	return &out
}

// Open opens the database at path, reconciles it with the registry and returns
// the ready connection.
//
// Returns an error if:
//   - the database cannot be opened (*db.ConnectionError)
//   - the catalog cannot be read (*db.IntrospectionError)
//   - a table's DDL batch fails (*db.MigrationError); that batch has been
//     rolled back, and the tables after it were not touched
//
// On error the connection is closed.
func Open(ctx context.Context, path string, opts *Options) (*db.Manager, *migrate.Report, error) {
	opts = opts.withDefaults()

	m, err := db.Open(ctx, path, &db.Options{Pragmas: *opts.Pragmas, Logger: opts.Logger})
	if err != nil {
		return nil, nil, err
	}

	report, err := migrate.NewReconciler(m, opts.Logger).Reconcile(ctx, opts.Registry)
	if err != nil {
		_ = m.Close()
		return nil, report, fmt.Errorf("failed to reconcile schema: %w", err)
	}

	return m, report, nil
}

// Plan opens the database at path and returns what Open would apply, without
// applying anything.
func Plan(ctx context.Context, path string, opts *Options) ([]*migrate.TablePlan, error) {
	opts = opts.withDefaults()

	m, err := db.Open(ctx, path, &db.Options{Pragmas: *opts.Pragmas, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	defer func() { _ = m.Close() }()

	return migrate.NewReconciler(m, opts.Logger).PlanAll(ctx, opts.Registry)
}
