package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/maltedev/competitor-price-scraper/internal/parser"
)

type RenderOptions struct {
	PriceSelector    string
	FallbackSelector string
	SettleDelay      time.Duration
	WaitTimeout      time.Duration
}

// TextExtractor is the pattern chain used on rendered element texts.
type TextExtractor interface {
	ExtractFromText(text string) (string, bool)
}

// RenderingFetcher resolves prices that only exist after client side
// rendering. Every call gets its own session which is torn down before
// returning.
type RenderingFetcher struct {
	newSession SessionFactory
	opts       RenderOptions
	text       TextExtractor
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

func NewRenderingFetcher(factory SessionFactory, opts RenderOptions, text TextExtractor, logger *slog.Logger) *RenderingFetcher {
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RenderingFetcher{
		newSession: factory,
		opts:       opts,
		text:       text,
		sleep:      settle,
		logger:     logger.With("component", "rendering_fetcher"),
	}
}

// FetchPrice navigates to url and reads the price from the rendered page.
func (r *RenderingFetcher) FetchPrice(ctx context.Context, url string) (price string, err error) {
	session, err := r.newSession(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAutomationFailure, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.logger.Warn("failed to close browser session", "url", url, "error", cerr)
		}
	}()

	if err := session.Navigate(url); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAutomationFailure, err)
	}

	if err := r.sleep(ctx, r.opts.SettleDelay); err != nil {
		return "", err
	}

	text, err := session.WaitForText(r.opts.PriceSelector, r.opts.WaitTimeout)
	switch {
	case err == nil:
		if price, ok := r.text.ExtractFromText(text); ok {
			return price, nil
		}
		r.logger.Debug("primary price element held no valid price", "url", url, "text", text)
		return "", parser.ErrPriceNotFound
	case errors.Is(err, ErrWaitTimeout):
		r.logger.Debug("primary price element missing, scanning variants", "url", url, "selector", r.opts.FallbackSelector)
		return r.lowestVariant(session)
	default:
		return "", fmt.Errorf("%w: %w", ErrAutomationFailure, err)
	}
}

// lowestVariant picks the cheapest valid price among the fallback
// elements, as listings with variants show one price per variant.
func (r *RenderingFetcher) lowestVariant(session Session) (string, error) {
	if r.opts.FallbackSelector == "" {
		return "", parser.ErrPriceNotFound
	}

	texts, err := session.AllTexts(r.opts.FallbackSelector)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAutomationFailure, err)
	}

	var (
		lowest float64
		found  bool
	)
	for _, text := range texts {
		price, ok := r.text.ExtractFromText(text)
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(price, 64)
		if err != nil {
			continue
		}
		if !found || value < lowest {
			lowest, found = value, true
		}
	}

	if !found {
		return "", parser.ErrPriceNotFound
	}
	return parser.Format(strconv.FormatFloat(lowest, 'f', -1, 64)), nil
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
