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

	for _, path := range []string{cfg.DatabasePath, cfg.PlanFile} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	client := feed.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, cfg, log)
	m := merger.New(store, scoring.NewEngine(scoring.DefaultLookup()), translate.Noop{}, cfg.TargetLanguage, log)
	p := planner.Planner{
		PageSize:  cfg.PageSize,
		HeadPages: cfg.HeadRefreshPages,
		TailPages: cfg.TailRecheckPages,
	}
	ctrl := pipeline.New(store, client, m, p, cfg.PlanFile, feed.Categories(), cfg.FetchConcurrency, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	plan, err := ctrl.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, planner.ErrPlanExists) {
			log.Info("previous plan not yet consumed, run ingest first", "plan_file", cfg.PlanFile)
			return
		}
		log.Error("snapshot run failed", "error", err)
		os.Exit(1)
	}

	log.Info("snapshot run complete", "entries", len(plan.Entries))
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
