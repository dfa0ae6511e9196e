package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"futuresHook/config"
	"futuresHook/internal/adapters/logger"
	"futuresHook/internal/adapters/sqlite"
	"futuresHook/internal/domain"
	"futuresHook/internal/utils"
)

func main() {
	symbol := flag.String("symbol", "", "only export runs for this symbol")
	limit := flag.Int("limit", 1000, "maximum number of runs to export, newest first")
	out := flag.String("out", "", "output CSV path (default data/runs_<timestamp>.csv)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	// 3. Open the Journal
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.JournalDBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open run journal: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	var runs []*domain.RunRecord
	if *symbol != "" {
		runs, err = repo.FindBySymbol(ctx, *symbol, *limit)
	} else {
		runs, err = repo.FindRecent(ctx, *limit)
	}
	if err != nil {
		appLogger.Error(ctx, err, "Error reading runs")
		log.Fatalf("Error reading runs: %v", err)
	}

	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("data/runs_%s.csv", time.Now().UTC().Format("20060102T150405"))
	}
	if err := utils.WriteRunsToCSV(runs, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename, "runs": len(runs)})
}
