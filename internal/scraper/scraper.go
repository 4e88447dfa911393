package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/competitor-price-scraper/internal/fetch"
	"github.com/maltedev/competitor-price-scraper/internal/parser"
)

var (
	ErrNoPriceFound       = errors.New("no price found")
	ErrPersistenceFailure = errors.New("failed to persist results")
	ErrRecordNotFound     = errors.New("record not found")
)

// PriceFetcher resolves the competitor price behind a product URL.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, url string) (string, error)
}

// PageScraper downloads static pages and runs the extraction chain on them.
type PageScraper struct {
	fetcher fetch.Fetcher
	parser  parser.Parser
	logger  *slog.Logger
}

var _ PriceFetcher = (*PageScraper)(nil)

func NewPageScraper(f fetch.Fetcher, p parser.Parser, logger *slog.Logger) *PageScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageScraper{
		fetcher: f,
		parser:  p,
		logger:  logger.With("component", "page_scraper"),
	}
}

func (s *PageScraper) FetchPrice(ctx context.Context, url string) (string, error) {
	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	price, err := s.parser.ExtractPrice(html)
	if err != nil {
		if errors.Is(err, parser.ErrPriceNotFound) {
			return "", fmt.Errorf("%w at %s", ErrNoPriceFound, url)
		}
		return "", err
	}

	s.logger.Debug("extracted price", "url", url, "price", price)
	return price, nil
}
