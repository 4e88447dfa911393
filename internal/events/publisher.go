package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/competitor-price-scraper/internal/models"
)

const DefaultStream = "stream:competitor_prices"

type EventType string

const (
	EventTypePriceScraped EventType = "PRICE_SCRAPED"
	EventTypeRunCompleted EventType = "RUN_COMPLETED"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// Publisher appends scrape results to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	now    func() time.Time
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		now:    time.Now,
		logger: logger.With("component", "event_publisher", "stream", stream),
	}
}

// PublishResults adds one stream entry per result. Failed entries are
// logged and skipped; the returned error joins all failures.
func (p *Publisher) PublishResults(ctx context.Context, runID, source string, results []models.ScrapeResult) error {
	var errs []error
	published := 0

	for _, r := range results {
		values := map[string]any{
			"type":      string(EventTypePriceScraped),
			"run_id":    runID,
			"source":    source,
			"sku":       r.SKU,
			"my_price":  r.BaselinePrice,
			"price":     r.CompetitorPrice,
			"link":      r.CompetitorURL,
			"timestamp": strconv.FormatInt(p.now().UnixNano(), 10),
		}

		if err := p.add(ctx, values); err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(errs, err)...)
			}
			p.logger.Error("failed to publish result", "sku", r.SKU, "error", err)
			errs = append(errs, fmt.Errorf("sku %s: %w", r.SKU, err))
			continue
		}
		published++
	}

	p.logger.Info("published results", "run_id", runID, "count", published, "failed", len(errs))
	return errors.Join(errs...)
}

func (p *Publisher) PublishRunCompleted(ctx context.Context, runID, source string, total, found int) error {
	return p.add(ctx, map[string]any{
		"type":      string(EventTypeRunCompleted),
		"run_id":    runID,
		"source":    source,
		"total":     strconv.Itoa(total),
		"found":     strconv.Itoa(found),
		"timestamp": strconv.FormatInt(p.now().UnixNano(), 10),
	})
}

func (p *Publisher) add(ctx context.Context, values map[string]any) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}

	if _, err := p.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
