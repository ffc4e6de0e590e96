package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lessonmap/internal/config"
	"lessonmap/internal/logger"
	"lessonmap/internal/storage"
	"lessonmap/internal/watch"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(cfg.Require("DB_PATH", cfg.DBPath))

	log, err := logger.New(cfg.LogMode)
	must(err)
	defer log.Sync()

	profile, err := config.LoadProfile(cfg)
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := watch.NewService(db, cfg, profile, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("watching", "dir", cfg.InputDir, "pattern", cfg.InputPattern, "interval_sec", cfg.WatchIntervalSec)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
