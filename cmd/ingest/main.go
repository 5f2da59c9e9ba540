package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bam_sniper/internal/config"
	"bam_sniper/internal/feed"
	"bam_sniper/internal/merger"
	"bam_sniper/internal/pipeline"
	"bam_sniper/internal/planner"
	"bam_sniper/internal/scoring"
	"bam_sniper/internal/storage"
	"bam_sniper/internal/translate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	// Provider selection is out of scope here; the passthrough keeps
	// the translated columns populated either way.
	var translator translate.Translator = translate.Noop{}
	if !cfg.SkipTranslation {
		log.Debug("no translation provider configured, passing text through")
	}

	client := feed.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, cfg, log)
	m := merger.New(store, scoring.NewEngine(scoring.DefaultLookup()), translator, cfg.TargetLanguage, log)
	p := planner.Planner{
		PageSize:  cfg.PageSize,
		HeadPages: cfg.HeadRefreshPages,
		TailPages: cfg.TailRecheckPages,
	}
	ctrl := pipeline.New(store, client, m, p, cfg.PlanFile, feed.Categories(), cfg.FetchConcurrency, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := ctrl.Ingest(ctx)
	if err != nil {
		if errors.Is(err, planner.ErrNoPlan) {
			log.Info("no plan owed, run snapshot first", "plan_file", cfg.PlanFile)
			return
		}
		log.Error("ingest run failed", "error", err)
		os.Exit(1)
	}

	var inserted, updated, priceChanges int
	var stale int64
	for _, e := range summary.Entries {
		inserted += e.Report.Inserted
		updated += e.Report.Updated
		priceChanges += e.Report.PriceChanges
		stale += e.MarkedStale
	}
	log.Info("ingest run complete",
		"cycle_id", summary.CycleID,
		"applied", summary.Applied,
		"entries", len(summary.Entries),
		"failed_entries", summary.FailedEntries(),
		"inserted", inserted,
		"updated", updated,
		"price_changes", priceChanges,
		"marked_stale", stale)

	if !summary.Applied {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
