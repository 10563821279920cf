package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemasync"
	"github.com/tordrt/schemasync/internal/config"
	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/formatter"
	"github.com/tordrt/schemasync/internal/schema"
	"github.com/tordrt/schemasync/internal/video"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile    string
	format     string
	tables     string
	exclude    string
	outputFile string
	outputDir  string

	filename string
	size     int64
	duration int64
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "schemasync",
		Short:         "Keep a SQLite database in line with a declared schema",
		Long:          `schemasync compares a SQLite database with a declarative schema registry and applies the missing tables, columns and indexes, one transaction per table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./schemasync.yaml if present)")
	rootCmd.PersistentFlags().String("database", "", "SQLite database file (default: database.sqlite)")
	rootCmd.PersistentFlags().String("registry", "", "YAML registry file (default: built-in video catalog tables)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")

	rootCmd.AddCommand(newMigrateCmd(), newPlanCmd(), newInspectCmd(), newCatalogCmd(), newVersionCmd())
	return rootCmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Reconcile the database with the registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, registry, err := setup(cmd)
			if err != nil {
				return err
			}

			m, report, err := schemasync.Open(cmd.Context(), cfg.Database, &schemasync.Options{
				Registry: registry,
				Pragmas:  &cfg.Pragmas,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := m.Close(); err != nil {
					logger.Warn("failed to close database", "error", err)
				}
			}()

			for _, t := range report.Tables {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d statements)\n", t.Table, t.Action, len(t.Executed))
			}
			return nil
		},
	}
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the DDL migrate would apply, without applying it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, registry, err := setup(cmd)
			if err != nil {
				return err
			}

			w, closeOutput, err := openOutput(cmd, outputFile)
			if err != nil {
				return err
			}
			defer closeOutput()

			f, err := formatter.New(format, w)
			if err != nil {
				return err
			}

			plans, err := schemasync.Plan(cmd.Context(), cfg.Database, &schemasync.Options{
				Registry: registry,
				Pragmas:  &cfg.Pragmas,
				Logger:   logger,
			})
			if err != nil {
				return fmt.Errorf("failed to plan migration: %w", err)
			}
			return f.FormatPlans(plans)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or markdown")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the live structure of the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, _, err := setup(cmd)
			if err != nil {
				return err
			}

			if outputDir != "" && outputFile != "" {
				return fmt.Errorf("cannot use both --output-dir and --output flags")
			}

			m, err := db.Open(cmd.Context(), cfg.Database, &db.Options{Pragmas: cfg.Pragmas, Logger: logger})
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			live, err := inspect(cmd.Context(), db.NewIntrospector(m), parseTableList(tables))
			if err != nil {
				return fmt.Errorf("failed to inspect database: %w", err)
			}
			live = filterExcludedTables(live, parseTableList(exclude))

			// Multi-file output
			if outputDir != "" {
				mf, err := formatter.NewMultiFileFormatter(outputDir, format)
				if err != nil {
					return err
				}
				return mf.FormatTables(live)
			}

			w, closeOutput, err := openOutput(cmd, outputFile)
			if err != nil {
				return err
			}
			defer closeOutput()

			f, err := formatter.New(format, w)
			if err != nil {
				return err
			}
			return f.FormatTables(live)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or markdown")
	cmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	cmd.Flags().StringVarP(&exclude, "exclude", "e", "", "Tables to leave out (comma-separated, optional)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Write one file per table into this directory")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with the video catalog, checked against the configured limits",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a video",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCatalog(cmd, func(c *video.Catalog) error {
				v, err := c.AddVideo(cmd.Context(), video.Video{Filename: filename, Size: size, Duration: duration})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), v.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&filename, "filename", "", "Video file name")
	addCmd.Flags().Int64Var(&size, "size", 0, "Size in bytes")
	addCmd.Flags().Int64Var(&duration, "duration", 0, "Duration in seconds")
	_ = addCmd.MarkFlagRequired("filename")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List videos and the limits in effect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCatalog(cmd, func(c *video.Catalog) error {
				w := cmd.OutOrStdout()
				l := c.Limits()
				_, _ = fmt.Fprintf(w, "limits: %d-%ds, max %d bytes\n", l.MinDuration, l.MaxDuration, l.MaxSize)

				videos, err := c.ListVideos(cmd.Context())
				if err != nil {
					return err
				}
				for _, v := range videos {
					shares, err := c.CountShares(cmd.Context(), v.ID)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(w, "%s %s %d bytes %ds (%d shares)\n", v.ID, v.Filename, v.Size, v.Duration, shares)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(addCmd, listCmd)
	return cmd
}

// withCatalog reconciles the video tables and hands fn a catalog using the configured limits
func withCatalog(cmd *cobra.Command, fn func(c *video.Catalog) error) error {
	cfg, logger, _, err := setup(cmd)
	if err != nil {
		return err
	}

	m, _, err := schemasync.Open(cmd.Context(), cfg.Database, &schemasync.Options{
		Registry: video.Registry(),
		Pragmas:  &cfg.Pragmas,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	c, err := video.NewCatalog(m, cfg.Limits)
	if err != nil {
		return err
	}
	return fn(c)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schemasync %s\n", Version)
		},
	}
}

// setup loads config, builds the logger and resolves the registry
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, *schema.Registry, error) {
	cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}

	registry := video.Registry()
	if cfg.Registry != "" {
		if registry, err = schema.LoadRegistryFile(cfg.Registry); err != nil {
			return nil, nil, nil, err
		}
	}
	return cfg, logger, registry, nil
}

func newLogger(level, logFormat string, w io.Writer) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(logFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// inspect reads the requested tables, or every table when names is empty
func inspect(ctx context.Context, in *db.Introspector, names []string) ([]schema.LiveTable, error) {
	if len(names) == 0 {
		var err error
		if names, err = in.TableNames(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]schema.LiveTable, 0, len(names))
	for _, name := range names {
		t, err := in.Table(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func filterExcludedTables(live []schema.LiveTable, excludeList []string) []schema.LiveTable {
	if len(excludeList) == 0 {
		return live
	}

	excludeSet := make(map[string]bool, len(excludeList))
	for _, name := range excludeList {
		excludeSet[name] = true
	}

	filtered := make([]schema.LiveTable, 0, len(live))
	for _, table := range live {
		if !excludeSet[table.Name] {
			filtered = append(filtered, table)
		}
	}
	return filtered
}

// openOutput returns the file at path, or the command's stdout when path is empty
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to close output file: %v\n", err)
		}
	}, nil
}

func parseTableList(s string) []string {
	if s == "" {
		return nil
	}
	list := strings.Split(s, ",")
	for i, t := range list {
		list[i] = strings.TrimSpace(t)
	}
	return list
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
