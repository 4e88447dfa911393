package source

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"

	"github.com/maltedev/competitor-price-scraper/internal/parser"
)

var validName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Columns are the two shared-table columns owned by one source.
type Columns struct {
	Price string
	Link  string
}

// RenderConfig switches a source to browser rendering.
type RenderConfig struct {
	PriceSelector    string
	FallbackSelector string
	SettleDelay      time.Duration
	WaitTimeout      time.Duration
}

// Config is the full scraping strategy for one competitor site.
type Config struct {
	Name string

	// LinkColumn is the catalog column holding this source's product URL.
	LinkColumn int
	// MinColumns is the narrowest catalog row still processed.
	MinColumns int

	Bounds     parser.Bounds
	Selectors  []parser.Selector
	Patterns   []*parser.Pattern
	Containers []string
	ScriptKeys []string
	MinTextLen int
	MaxTextLen int

	Render *RenderConfig
}

func (c Config) Columns() Columns {
	return Columns{
		Price: c.Name + "_price",
		Link:  c.Name + "_link",
	}
}

// OutputFile is the default per-run snapshot name.
func (c Config) OutputFile() string {
	return strings.ToLower(c.Name) + ".csv"
}

func (c Config) ParserOptions() parser.Options {
	return parser.Options{
		Bounds:     c.Bounds,
		Selectors:  c.Selectors,
		Patterns:   c.Patterns,
		Containers: c.Containers,
		ScriptKeys: c.ScriptKeys,
		MinTextLen: c.MinTextLen,
		MaxTextLen: c.MaxTextLen,
	}
}

func (c Config) Validate() error {
	if !validName.MatchString(c.Name) {
		return fmt.Errorf("source name %q must start with a letter and contain only letters, digits or underscores", c.Name)
	}
	if c.LinkColumn < 2 {
		return fmt.Errorf("source %s: link column %d collides with the sku/price columns", c.Name, c.LinkColumn)
	}
	if c.MinColumns <= c.LinkColumn {
		return fmt.Errorf("source %s: min columns %d must exceed link column %d", c.Name, c.MinColumns, c.LinkColumn)
	}
	if err := c.Bounds.Validate(); err != nil {
		return fmt.Errorf("source %s: %w", c.Name, err)
	}

	css := make([]string, 0, len(c.Selectors)+len(c.Containers)+2)
	for _, s := range c.Selectors {
		if s.Kind == parser.AttrSelector && s.Attr == "" {
			return fmt.Errorf("source %s: attribute selector %q has no attribute", c.Name, s.CSS)
		}
		css = append(css, s.CSS)
	}
	css = append(css, c.Containers...)
	if c.Render != nil {
		if c.Render.PriceSelector == "" {
			return fmt.Errorf("source %s: render config needs a price selector", c.Name)
		}
		css = append(css, c.Render.PriceSelector)
		if c.Render.FallbackSelector != "" {
			css = append(css, c.Render.FallbackSelector)
		}
	}
	for _, sel := range css {
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("source %s: invalid selector %q: %w", c.Name, sel, err)
		}
	}

	return nil
}
