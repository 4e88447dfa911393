package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/competitor-price-scraper/internal/browser"
	"github.com/maltedev/competitor-price-scraper/internal/config"
	"github.com/maltedev/competitor-price-scraper/internal/database"
	"github.com/maltedev/competitor-price-scraper/internal/events"
	"github.com/maltedev/competitor-price-scraper/internal/fetch"
	"github.com/maltedev/competitor-price-scraper/internal/models"
	"github.com/maltedev/competitor-price-scraper/internal/parser"
	"github.com/maltedev/competitor-price-scraper/internal/ratelimit"
	"github.com/maltedev/competitor-price-scraper/internal/scraper"
	"github.com/maltedev/competitor-price-scraper/internal/source"
	"github.com/maltedev/competitor-price-scraper/internal/storage"
	"github.com/maltedev/competitor-price-scraper/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code.
func run(args []string) int {
	flags := flag.NewFlagSet("price-scraper", flag.ContinueOnError)
	var (
		sourceName  = flags.String("source", "", "Source to scrape (Naheed, Diamond, Metro or one from -sources)")
		catalogPath = flags.String("catalog", "", "Catalog file (.csv or .xlsx)")
		sourcesFile = flags.String("sources", "", "Optional YAML file with extra source definitions")
		output      = flags.String("output", "", "Per run output file (.csv or .xlsx), defaults to <source>.csv")
		store       = flags.String("store", "postgres", "Shared table backend: postgres, file or none")
		storeFile   = flags.String("store-file", "unified_competitor_prices.json", "Path of the file store")
		render      = flags.Bool("render", true, "Use the browser for sources that render prices client side")
		list        = flags.Bool("list", false, "List known sources and exit")
	)
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	registry := source.NewRegistry()
	if *sourcesFile != "" {
		if err := registry.LoadFile(*sourcesFile); err != nil {
			logger.Error("failed to load sources", "file", *sourcesFile, "error", err)
			return 1
		}
	}

	if *list {
		fmt.Println(strings.Join(registry.Names(), "\n"))
		return 0
	}

	if *sourceName == "" || *catalogPath == "" {
		flags.Usage()
		return 2
	}

	switch *store {
	case "postgres", "file", "none":
	default:
		logger.Error("unknown store", "store", *store)
		return 2
	}

	src, err := registry.Get(*sourceName)
	if err != nil {
		logger.Error("unknown source", "source", *sourceName, "known", registry.Names())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID, "source", src.Name)
	logger.Info("starting competitor price scrape", "catalog", *catalogPath)

	fetcher, cleanup, err := newFetcher(src, cfg, *render, logger)
	if err != nil {
		logger.Error("failed to initialize fetcher", "error", err)
		return 1
	}
	defer cleanup()

	pacer := ratelimit.NewPacer(cfg.Scraper.RateLimitDelay, cfg.Scraper.WarmupRows)
	runner := scraper.NewRunner(src, fetcher, pacer, logger)

	start := time.Now()
	results, err := runner.Run(ctx, *catalogPath)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run cancelled, nothing persisted", "processed", len(results))
		} else {
			logger.Error("run failed", "error", err)
		}
		return 1
	}

	if len(results) == 0 {
		logger.Warn("no data saved", "reason", "catalog produced no usable rows")
		return 0
	}

	cols := src.Columns()

	if err := persist(ctx, *store, *storeFile, cfg, cols, results, logger); err != nil {
		logger.Error("failed to persist results", "error", err)
	}

	outPath := *output
	if outPath == "" {
		outPath = src.OutputFile()
	}
	if err := storage.WriteSnapshot(outPath, cols, results); err != nil {
		logger.Error("failed to write output file", "path", outPath, "error", err)
	} else {
		logger.Info("wrote output file", "path", filepath.Clean(outPath))
	}

	summary := scraper.Summarize(results)

	if cfg.Redis.Enabled() {
		publish(ctx, cfg.Redis, runID, src.Name, results, summary, logger)
	}

	logger.Info("run complete",
		"total", summary.Total,
		"found", summary.Found,
		"missing", summary.Missing(),
		"paced", pacer.Calls(),
		"duration", time.Since(start).Round(time.Second))
	return 0
}

var newFetcher = newPriceFetcher

// newPriceFetcher picks the browser strategy for rendered sources and the
// plain HTTP strategy otherwise.
func newPriceFetcher(src source.Config, cfg *config.Config, render bool, logger *slog.Logger) (scraper.PriceFetcher, func(), error) {
	extractor := parser.NewPriceExtractor(src.ParserOptions(), logger)

	if src.Render != nil && render {
		opts := browser.DefaultOptions()
		opts.Endpoint = cfg.Browser.Endpoint
		opts.Headless = cfg.Browser.Headless
		opts.Timeout = cfg.Browser.Timeout
		opts.ViewportWidth = cfg.Browser.ViewportWidth
		opts.ViewportHeight = cfg.Browser.ViewportHeight
		opts.Locale = cfg.Browser.Locale
		if cfg.Scraper.UserAgent != "" {
			opts.UserAgent = cfg.Scraper.UserAgent
		}

		launcher, err := browser.NewLauncher(opts, logger)
		if err != nil {
			return nil, func() {}, err
		}

		renderOpts := browser.RenderOptions{
			PriceSelector:    src.Render.PriceSelector,
			FallbackSelector: src.Render.FallbackSelector,
			SettleDelay:      src.Render.SettleDelay,
			WaitTimeout:      src.Render.WaitTimeout,
		}
		if renderOpts.SettleDelay == 0 {
			renderOpts.SettleDelay = cfg.Browser.SettleDelay
		}
		if renderOpts.WaitTimeout == 0 {
			renderOpts.WaitTimeout = cfg.Browser.WaitTimeout
		}

		rf := browser.NewRenderingFetcher(launcher.NewSession, renderOpts, extractor, logger)
		return rf, func() {
			if err := launcher.Close(); err != nil {
				logger.Warn("failed to stop browser driver", "error", err)
			}
		}, nil
	}

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.MaxRetries = cfg.Scraper.MaxRetries
	fetchOpts.RetryDelay = cfg.Scraper.RetryDelay
	fetchOpts.Timeout = cfg.Scraper.Timeout
	fetchOpts.ConnectTimeout = cfg.Scraper.ConnectTimeout
	if cfg.Scraper.UserAgent != "" {
		fetchOpts.UserAgent = cfg.Scraper.UserAgent
	}

	hf, err := fetch.NewHTTPFetcher(fetchOpts, logger)
	if err != nil {
		return nil, func() {}, err
	}
	return scraper.NewPageScraper(hf, extractor, logger), func() {}, nil
}

func persist(ctx context.Context, kind, storeFile string, cfg *config.Config, cols source.Columns, results []models.ScrapeResult, logger *slog.Logger) error {
	switch kind {
	case "none":
		logger.Info("persistence disabled")
		return nil
	case "file":
		fs, err := storage.NewFileStore(storeFile)
		if err != nil {
			return fmt.Errorf("%w: %w", scraper.ErrPersistenceFailure, err)
		}
		if err := scraper.Persist(ctx, fs, cols, results); err != nil {
			return err
		}
		logger.Info("saved results to file store", "path", storeFile, "count", len(results))
		return nil
	case "postgres":
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", scraper.ErrPersistenceFailure, err)
		}
		defer db.Close()

		if err := scraper.Persist(ctx, database.NewPriceStore(db, database.DefaultTable, logger), cols, results); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown store %q", kind)
	}
}

func publish(ctx context.Context, cfg config.RedisConfig, runID, sourceName string, results []models.ScrapeResult, summary scraper.Summary, logger *slog.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		return
	}

	publisher := events.NewPublisher(client, cfg.Stream, logger)
	if err := publisher.PublishResults(ctx, runID, sourceName, results); err != nil {
		logger.Warn("some results were not published", "error", err)
	}
	if err := publisher.PublishRunCompleted(ctx, runID, sourceName, summary.Total, summary.Found); err != nil {
		logger.Warn("failed to publish run summary", "error", err)
	}
}
