package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/competitor-price-scraper/internal/catalog"
	"github.com/maltedev/competitor-price-scraper/internal/models"
	"github.com/maltedev/competitor-price-scraper/internal/source"
)

// Pacer delays scrape calls by data row position.
type Pacer interface {
	WaitAt(ctx context.Context, index int) error
}

type Runner struct {
	source  source.Config
	fetcher PriceFetcher
	pacer   Pacer
	logger  *slog.Logger
}

func NewRunner(src source.Config, f PriceFetcher, pacer Pacer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:  src,
		fetcher: f,
		pacer:   pacer,
		logger:  logger.With("component", "runner", "source", src.Name),
	}
}

// Run walks the catalog at path and returns one result per row with a SKU.
// On cancellation the results gathered so far are returned with the
// context error.
func (r *Runner) Run(ctx context.Context, path string) ([]models.ScrapeResult, error) {
	records, err := catalog.Read(path, r.source.LinkColumn+1)
	if err != nil {
		return nil, err
	}

	if len(records) <= catalog.HeaderRows {
		r.logger.Warn("catalog has no data rows", "path", path, "rows", len(records))
		return nil, nil
	}

	return r.RunRows(ctx, catalog.Rows(records, r.source.LinkColumn, r.source.MinColumns))
}

func (r *Runner) RunRows(ctx context.Context, rows []models.CatalogRow) ([]models.ScrapeResult, error) {
	results := make([]models.ScrapeResult, 0, len(rows))

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if !row.HasURL() {
			r.logger.Info("no link provided", "sku", row.SKU, "price", models.NoPrice)
			results = append(results, models.NewScrapeResult(row, models.NoPrice))
			continue
		}

		if r.pacer != nil {
			if err := r.pacer.WaitAt(ctx, row.Line-1-catalog.HeaderRows); err != nil {
				return results, err
			}
		}

		r.logger.Info("processing SKU", "sku", row.SKU, "line", row.Line)
		price, err := r.fetcher.FetchPrice(ctx, row.CompetitorURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			r.logger.Warn("no price found", "sku", row.SKU, "url", row.CompetitorURL, "error", err)
			results = append(results, models.NewScrapeResult(row, models.NoPrice))
			continue
		}

		r.logger.Info("price found", "sku", row.SKU, "price", price)
		results = append(results, models.NewScrapeResult(row, price))
	}

	r.logger.Info("completed processing", "total", len(results))
	return results, nil
}

type Summary struct {
	Total int
	Found int
}

func (s Summary) Missing() int {
	return s.Total - s.Found
}

func Summarize(results []models.ScrapeResult) Summary {
	s := Summary{Total: len(results)}
	for _, res := range results {
		if res.Found() {
			s.Found++
		}
	}
	return s
}

// Persist migrates the store once and upserts the run's results.
func Persist(ctx context.Context, store MergeStore, cols source.Columns, results []models.ScrapeResult) error {
	if len(results) == 0 {
		return nil
	}

	if err := store.Migrate(ctx, cols); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrPersistenceFailure, err)
	}

	if err := store.Upsert(ctx, results, cols); err != nil {
		if errors.Is(err, ErrPersistenceFailure) {
			return err
		}
		return fmt.Errorf("%w: upsert: %w", ErrPersistenceFailure, err)
	}

	return nil
}
