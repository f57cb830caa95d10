// sqlsage-refresh rebuilds the snapshot documents from warehouse
// metadata. The API server shells out to this binary; it also runs
// standalone from cron or by hand.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/observability"
	"github.com/sqlsage/sqlsage/internal/refresh"
	"github.com/sqlsage/sqlsage/internal/storage"
	localstore "github.com/sqlsage/sqlsage/internal/storage/local"
	s3store "github.com/sqlsage/sqlsage/internal/storage/s3"
)

var rootCmd = &cobra.Command{
	Use:           "sqlsage-refresh",
	Short:         "Refresh the database list and schema snapshot documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "Rewrite the database list document from SHOW DATABASES",
	RunE: func(cmd *cobra.Command, _ []string) error {
		extractor, err := newExtractor(cmd.Context())
		if err != nil {
			return err
		}
		spinner, _ := pterm.DefaultSpinner.Start("Fetching database list")
		names, err := extractor.RefreshDatabases(cmd.Context())
		if err != nil {
			spinner.Fail("Database list refresh failed")
			return err
		}
		spinner.Success(fmt.Sprintf("Saved %d databases", len(names)))
		for _, name := range names {
			pterm.Println("  " + name)
		}
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema [database...]",
	Short: "Rewrite the schema snapshot document; no arguments covers every database",
	RunE: func(cmd *cobra.Command, args []string) error {
		extractor, err := newExtractor(cmd.Context())
		if err != nil {
			return err
		}
		spinner, _ := pterm.DefaultSpinner.Start("Extracting schemas")
		count, err := extractor.RefreshSchemas(cmd.Context(), args...)
		if err != nil {
			spinner.Fail("Schema extraction failed")
			return err
		}
		spinner.Success(fmt.Sprintf("Saved schemas for %d databases", count))
		return nil
	},
}

func newExtractor(ctx context.Context) (*refresh.Extractor, error) {
	cfg, err := config.LoadFromEnv("sqlsage-refresh")
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	store, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &refresh.Extractor{
		Driver:       cfg.Warehouse.Driver,
		DSN:          cfg.Warehouse.DSN,
		Store:        store,
		DatabasesKey: cfg.Snapshot.DatabasesKey,
		SchemasKey:   cfg.Snapshot.SchemasKey,
		Logger:       logger,
	}, nil
}

func newSnapshotStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if cfg.Snapshot.Backend == "s3" {
		return s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.Snapshot.S3Endpoint,
			Region:           cfg.Snapshot.S3Region,
			Bucket:           cfg.Snapshot.S3Bucket,
			AccessKeyID:      cfg.Snapshot.S3AccessKey,
			SecretAccessKey:  cfg.Snapshot.S3SecretKey,
			UseSSL:           cfg.Snapshot.S3UseSSL,
			Prefix:           cfg.Snapshot.S3Prefix,
			AutoCreateBucket: cfg.Snapshot.S3AutoCreate,
		})
	}
	return localstore.New(cfg.Snapshot.Dir)
}

func main() {
	_ = godotenv.Load()

	rootCmd.AddCommand(databasesCmd, schemaCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("refresh failed", slog.Any("error", err))
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
