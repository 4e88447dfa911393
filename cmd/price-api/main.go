package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/competitor-price-scraper/internal/api"
	"github.com/maltedev/competitor-price-scraper/internal/config"
	"github.com/maltedev/competitor-price-scraper/internal/database"
	"github.com/maltedev/competitor-price-scraper/internal/scraper"
	"github.com/maltedev/competitor-price-scraper/internal/storage"
	"github.com/maltedev/competitor-price-scraper/pkg/logger"
)

func main() {
	var (
		store     = flag.String("store", "postgres", "Shared table backend: postgres or file")
		storeFile = flag.String("store-file", "unified_competitor_prices.json", "Path of the file store")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		reader scraper.RecordReader
		pinger api.Pinger
	)

	switch *store {
	case "file":
		fs, err := storage.NewFileStore(*storeFile)
		if err != nil {
			logger.Error("failed to open file store", "path", *storeFile, "error", err)
			os.Exit(1)
		}
		reader = fs
	case "postgres":
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		reader = database.NewPriceStore(db, database.DefaultTable, logger)
		pinger = db
	default:
		logger.Error("unknown store", "store", *store)
		os.Exit(2)
	}

	handlers := api.NewHandlers(reader, pinger, logger)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handlers.Router(cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("starting price API", "addr", server.Addr, "store", *store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
