package fetch

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxRedirects = 10
	maxBodyBytes = 16 << 20
)

type Options struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	UserAgent      string
	Headers        map[string]string
}

func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 15 * time.Second,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		UserAgent:      DefaultUserAgent,
		Headers:        DefaultHeaders(),
	}
}

func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Accept-Encoding":           "gzip, deflate",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Referer":                   "https://www.google.com/",
		"Cache-Control":             "max-age=0",
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
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

// HTTPFetcher issues browser-like GET requests with a bounded retry loop.
// Connections and cookies are shared between calls.
type HTTPFetcher struct {
	client *http.Client
	opts   Options
	sleep  SleepFunc
	logger *slog.Logger
}

type Option func(*HTTPFetcher)

// WithSleep replaces the delay between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(f *HTTPFetcher) {
		f.sleep = fn
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

func NewHTTPFetcher(opts Options, logger *slog.Logger, options ...Option) (*HTTPFetcher, error) {
	defaults := DefaultOptions()
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.Headers == nil {
		opts.Headers = defaults.Headers
	}
	if logger == nil {
		logger = slog.Default()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	f := &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		opts:   opts,
		sleep:  sleepContext,
		logger: logger.With("component", "http_fetcher"),
	}

	for _, o := range options {
		o(f)
	}

	return f, nil
}

// Fetch returns the page content, retrying retryable failures up to the
// configured number of attempts.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	return f.FetchWithRetries(ctx, rawURL, f.opts.MaxRetries)
}

func (f *HTTPFetcher) FetchWithRetries(ctx context.Context, rawURL string, maxRetries int) (string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var last Outcome
	for attempt := 1; attempt <= maxRetries; attempt++ {
		last = f.attempt(ctx, rawURL)

		switch last.Kind {
		case Success:
			if attempt > 1 {
				f.logger.Info("fetch succeeded after retry", "url", rawURL, "attempt", attempt)
			}
			return last.Body, nil
		case Terminal:
			return "", &FetchError{URL: rawURL, Attempts: attempt, StatusCode: last.StatusCode, Err: last.Err}
		}

		f.logger.Warn("fetch attempt failed",
			"url", rawURL,
			"attempt", attempt,
			"max_attempts", maxRetries,
			"status", last.StatusCode,
			"error", last.Err)

		if attempt == maxRetries {
			break
		}

		if err := f.sleep(ctx, f.opts.RetryDelay); err != nil {
			return "", &FetchError{URL: rawURL, Attempts: attempt, StatusCode: last.StatusCode, Err: err}
		}
	}

	f.logger.Error("failed to fetch content", "url", rawURL, "attempts", maxRetries, "error", last.Err)
	return "", &FetchError{URL: rawURL, Attempts: maxRetries, StatusCode: last.StatusCode, Err: last.Err}
}

func (f *HTTPFetcher) attempt(ctx context.Context, rawURL string) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: Terminal, Err: err}
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Outcome{Kind: Terminal, Err: fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Outcome{Kind: Terminal, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	for k, v := range f.opts.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{Kind: Terminal, Err: ctxErr}
		}
		return Outcome{Kind: Retryable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Outcome{Kind: Retryable, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := readBody(resp)
	if err != nil {
		return Outcome{Kind: Retryable, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if strings.TrimSpace(body) == "" {
		return Outcome{Kind: Retryable, StatusCode: resp.StatusCode, Err: ErrEmptyBody}
	}

	return Outcome{Kind: Success, Body: body, StatusCode: resp.StatusCode}
}

// readBody decodes gzip and deflate payloads. Setting Accept-Encoding by
// hand turns off the transport's own decompression.
func readBody(resp *http.Response) (string, error) {
	var r io.Reader = io.LimitReader(resp.Body, maxBodyBytes)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		dr, err := newDeflateReader(r)
		if err != nil {
			return "", err
		}
		defer dr.Close()
		r = dr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// newDeflateReader accepts both zlib-wrapped and raw deflate streams;
// servers disagree on which one "deflate" means.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(header) == 2 && header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}
