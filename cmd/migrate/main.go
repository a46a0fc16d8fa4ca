package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/alvmarrod/tgbot-chapter-notifier/migrations"
)

var dbPath string

var subcommands = []struct {
	use   string
	short string
	run   func(ctx context.Context, db *sql.DB) error
}{
	{"up", "Migrate to the latest version", func(ctx context.Context, db *sql.DB) error {
		return goose.UpContext(ctx, db, ".")
	}},
	{"up-one", "Migrate one version up", func(ctx context.Context, db *sql.DB) error {
		return goose.UpByOneContext(ctx, db, ".")
	}},
	{"down", "Roll back one version", func(ctx context.Context, db *sql.DB) error {
		return goose.DownContext(ctx, db, ".")
	}},
	{"status", "Show migration status", func(ctx context.Context, db *sql.DB) error {
		return goose.StatusContext(ctx, db, ".")
	}},
	{"version", "Show current version", func(ctx context.Context, db *sql.DB) error {
		return goose.VersionContext(ctx, db, ".")
	}},
	{"reset", "Roll back all migrations", func(ctx context.Context, db *sql.DB) error {
		return goose.ResetContext(ctx, db, ".")
	}},
}

func main() {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the schema of the chapter database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", "./data/chapters.db"), "path to sqlite database")

	for _, sc := range subcommands {
		run := sc.run
		root.AddCommand(&cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd.Context(), func(db *sql.DB) error {
					return run(cmd.Context(), db)
				})
			},
		})
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := migrations.Setup(); err != nil {
		return err
	}
	return fn(db)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
