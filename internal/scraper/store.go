package scraper

import (
	"context"

	"github.com/maltedev/competitor-price-scraper/internal/models"
	"github.com/maltedev/competitor-price-scraper/internal/source"
)

// MergeStore is the shared SKU keyed table. Upsert only ever touches
// my_price and the two columns named by cols.
type MergeStore interface {
	Migrate(ctx context.Context, cols source.Columns) error
	Upsert(ctx context.Context, results []models.ScrapeResult, cols source.Columns) error
}

// RecordReader is the read side of the shared table.
type RecordReader interface {
	Get(ctx context.Context, sku string) (*models.MergedRecord, error)
	List(ctx context.Context, limit, offset int) ([]models.MergedRecord, error)
}
