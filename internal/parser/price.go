package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Options struct {
	Bounds    Bounds
	Selectors []Selector
	Patterns  []*Pattern

	// Containers are broad content regions searched after the selector
	// chain and before the whole document.
	Containers []string

	// ScriptKeys are JSON keys looked up inside <script> bodies before the
	// selector chain, e.g. "sell_price".
	ScriptKeys []string

	// MinTextLen and MaxTextLen skip element texts outside the range.
	// Zero disables the check.
	MinTextLen int
	MaxTextLen int
}

func DefaultOptions() Options {
	return Options{
		Bounds:    DefaultBounds(),
		Selectors: DefaultSelectors(),
		Patterns:  DefaultPatterns(),
	}
}

// PriceExtractor runs the structured selector chain and falls back to
// free-text patterns. The first value that validates wins.
type PriceExtractor struct {
	opts        Options
	scriptRules []*regexp.Regexp
	logger      *slog.Logger
}

var _ Parser = (*PriceExtractor)(nil)

func NewPriceExtractor(opts Options, logger *slog.Logger) *PriceExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Bounds == (Bounds{}) {
		opts.Bounds = DefaultBounds()
	}
	if opts.Patterns == nil {
		opts.Patterns = DefaultPatterns()
	}
	if opts.Selectors == nil {
		opts.Selectors = DefaultSelectors()
	}

	rules := make([]*regexp.Regexp, 0, len(opts.ScriptKeys))
	for _, key := range opts.ScriptKeys {
		rules = append(rules, regexp.MustCompile(`"`+regexp.QuoteMeta(key)+`"\s*:\s*"?(\d+(?:\.\d+)?)`))
	}

	return &PriceExtractor{
		opts:        opts,
		scriptRules: rules,
		logger:      logger.With("component", "price_extractor"),
	}
}

func (p *PriceExtractor) Bounds() Bounds {
	return p.opts.Bounds
}

// ExtractPrice returns the canonical price found in html, or
// ErrPriceNotFound.
func (p *PriceExtractor) ExtractPrice(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("empty content: %w", ErrPriceNotFound)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.logger.Debug("falling back to raw text", "error", fmt.Errorf("%w: %v", ErrParseFailure, err))
		if price, ok := p.ExtractFromText(html); ok {
			return price, nil
		}
		return "", ErrPriceNotFound
	}

	if price, ok := p.fromScripts(doc); ok {
		return price, nil
	}

	if price, ok := p.fromSelectors(doc); ok {
		return price, nil
	}

	// Text fallbacks only see visible markup.
	doc.Find("script, style, noscript").Remove()

	for _, css := range p.opts.Containers {
		if price, ok := p.ExtractFromText(doc.Find(css).Text()); ok {
			p.logger.Debug("price found in content container", "selector", css, "price", price)
			return price, nil
		}
	}

	p.logger.Debug("no price found with selectors, falling back to full text extraction")
	if price, ok := p.ExtractFromText(doc.Text()); ok {
		return price, nil
	}

	return "", ErrPriceNotFound
}

// ExtractFromText runs the pattern chain over normalized text.
func (p *PriceExtractor) ExtractFromText(text string) (string, bool) {
	text = Normalize(text)
	if text == "" {
		return "", false
	}

	for _, pattern := range p.opts.Patterns {
		for _, candidate := range pattern.Candidates(text) {
			if p.opts.Bounds.IsValid(candidate) {
				p.logger.Debug("matched price pattern", "pattern", pattern.Name, "candidate", candidate)
				return Format(candidate), true
			}
		}
	}

	return "", false
}

func (p *PriceExtractor) fromSelectors(doc *goquery.Document) (string, bool) {
	for _, selector := range p.opts.Selectors {
		for _, c := range selector.Candidates(doc) {
			if c.Kind == ElementText && c.ContentAttr == "" && !p.textLenOK(c.Text) {
				continue
			}

			value := c.Value()
			p.logger.Debug("testing candidate", "selector", selector.String(), "text", value)

			if price, ok := p.ExtractFromText(value); ok {
				p.logger.Debug("found valid price using selector", "selector", selector.String(), "price", price)
				return price, true
			}
		}
	}
	return "", false
}

func (p *PriceExtractor) fromScripts(doc *goquery.Document) (string, bool) {
	if len(p.scriptRules) == 0 {
		return "", false
	}

	var (
		price string
		found bool
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		for _, rule := range p.scriptRules {
			m := rule.FindStringSubmatch(body)
			if len(m) > 1 && p.opts.Bounds.IsValid(m[1]) {
				price, found = Format(m[1]), true
				return false
			}
		}
		return true
	})

	if found {
		p.logger.Debug("found price in embedded script data", "price", price)
	}
	return price, found
}

func (p *PriceExtractor) textLenOK(text string) bool {
	n := len(text)
	if p.opts.MinTextLen > 0 && n < p.opts.MinTextLen {
		return false
	}
	if p.opts.MaxTextLen > 0 && n > p.opts.MaxTextLen {
		return false
	}
	return true
}
