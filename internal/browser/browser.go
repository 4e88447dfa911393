package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

var (
	ErrAutomationFailure = errors.New("browser automation failure")
	ErrWaitTimeout       = errors.New("timed out waiting for element")
)

type Options struct {
	// Endpoint is the remote automation server. ws:// endpoints are
	// playwright servers, http:// endpoints are Chrome DevTools. When empty
	// a local Chromium is launched per session.
	Endpoint string

	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		},
	}
}

// Session is one scoped browser page. Close must release everything the
// session acquired.
type Session interface {
	Navigate(url string) error
	WaitForText(selector string, timeout time.Duration) (string, error)
	AllTexts(selector string) ([]string, error)
	Close() error
}

// SessionFactory opens a fresh session.
type SessionFactory func(ctx context.Context) (Session, error)

// Launcher owns the playwright driver and hands out sessions backed by a
// new browser connection each time.
type Launcher struct {
	pw     *playwright.Playwright
	opts   *Options
	logger *slog.Logger
}

func NewLauncher(opts *Options, logger *slog.Logger) (*Launcher, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &Launcher{
		pw:     pw,
		opts:   opts,
		logger: logger.With("component", "browser"),
	}, nil
}

func (l *Launcher) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := l.connect()
	if err != nil {
		return nil, err
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &l.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &l.opts.Locale,
		Viewport: &playwright.Size{
			Width:  l.opts.ViewportWidth,
			Height: l.opts.ViewportHeight,
		},
		ExtraHttpHeaders: l.opts.ExtraHeaders,
	}

	bctx, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		b.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(l.opts.Timeout.Milliseconds()))

	return &pwSession{
		browser: b,
		context: bctx,
		page:    page,
		timeout: l.opts.Timeout,
	}, nil
}

func (l *Launcher) connect() (playwright.Browser, error) {
	endpoint := strings.TrimSpace(l.opts.Endpoint)

	switch {
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		l.logger.Debug("connecting to remote browser", "endpoint", endpoint)
		b, err := l.pw.Chromium.Connect(endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
		}
		return b, nil
	case endpoint != "":
		if !strings.Contains(endpoint, "://") {
			endpoint = "http://" + endpoint
		}
		l.logger.Debug("connecting to remote browser over CDP", "endpoint", endpoint)
		b, err := l.pw.Chromium.ConnectOverCDP(endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
		}
		return b, nil
	}

	b, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &l.opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return b, nil
}

func (l *Launcher) Close() error {
	if l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

type pwSession struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
}

func (s *pwSession) Navigate(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *pwSession) WaitForText(selector string, timeout time.Duration) (string, error) {
	loc := s.page.Locator(selector).First()

	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return "", fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
		}
		return "", err
	}

	return loc.InnerText()
}

func (s *pwSession) AllTexts(selector string) ([]string, error) {
	return s.page.Locator(selector).AllInnerTexts()
}

func (s *pwSession) Close() error {
	var errs []error

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	return errors.Join(errs...)
}
