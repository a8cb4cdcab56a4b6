package main

import (
	"os"
	"time"

	"ledger/internal/api"
	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentAPI)

	repo, err := storage.NewSQLiteRepository(cfg.ServerDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.ServerDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	srv := api.NewServer(":"+cfg.APIPort, repo, api.WithLogger(logger))

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting ledger API", "port", cfg.APIPort, "db", cfg.ServerDBPath)
	if err := cli.Serve(ctx, logger, srv, 30*time.Second); err != nil {
		logger.Error("Ledger API stopped with error", log.FieldError, err)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("Ledger API stopped gracefully")
}
