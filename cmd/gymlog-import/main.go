package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meltforce/gymlog/internal/config"
	"github.com/meltforce/gymlog/internal/ingest"
	"github.com/meltforce/gymlog/internal/ingest/alpha"
	"github.com/meltforce/gymlog/internal/metrics"
	"github.com/meltforce/gymlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (empty: environment only)")
	filePath := flag.String("file", "", "path to an Alpha Progression CSV export (required)")
	userID := flag.String("user", "", "user the sessions belong to (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *filePath == "" || *userID == "" {
		fmt.Fprintf(os.Stderr, "Usage: gymlog-import -config config.yaml -file export.csv -user alice [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*filePath)
	if err != nil {
		log.Error("cannot open export", "path", *filePath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(cfg.Database.Driver, dsn); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected", "driver", db.Driver())

	provider := alpha.NewProvider(db, log, *dryRun)
	start := time.Now()
	result, err := provider.Ingest(ctx, f, *userID)
	if !*dryRun {
		ingest.LogImport(db, metrics.Noop{}, log, *userID, provider.Source(), result, err, time.Since(start))
	}
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}

	printStats(log, result)
	log.Info("import complete", "took", time.Since(start).Round(time.Millisecond))
}

func printStats(log *slog.Logger, r *ingest.Result) {
	log.Info("import stats",
		"sessions_received", r.SessionsReceived,
		"sessions_imported", r.SessionsImported,
		"sessions_replaced", r.SessionsReplaced,
		"exercises_imported", r.ExercisesImported,
		"sets_imported", r.SetsImported,
		"warmups_skipped", r.WarmupsSkipped,
	)
}
