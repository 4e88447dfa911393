package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/maltedev/competitor-price-scraper/internal/parser"
)

var ErrUnknownSource = errors.New("unknown source")

// Registry holds the known sources keyed by lower-cased name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Config
}

// NewRegistry returns a registry preloaded with the built-in sources.
func NewRegistry() *Registry {
	r := &Registry{sources: make(map[string]Config)}
	for _, c := range builtins() {
		r.sources[strings.ToLower(c.Name)] = c
	}
	return r
}

func (r *Registry) Register(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[strings.ToLower(c.Name)] = c
	return nil
}

func (r *Registry) Get(name string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.sources[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return c, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for _, c := range r.sources {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

type fileSpec struct {
	Sources []sourceSpec `mapstructure:"sources"`
}

type sourceSpec struct {
	Name       string         `mapstructure:"name"`
	Extends    string         `mapstructure:"extends"`
	LinkColumn int            `mapstructure:"link_column"`
	MinColumns int            `mapstructure:"min_columns"`
	Bounds     *parser.Bounds `mapstructure:"bounds"`
	Selectors  []selectorSpec `mapstructure:"selectors"`
	PatternSet string         `mapstructure:"pattern_set"`
	Patterns   []patternSpec  `mapstructure:"patterns"`
	Containers []string       `mapstructure:"containers"`
	ScriptKeys []string       `mapstructure:"script_keys"`
	TextLength *struct {
		Min int `mapstructure:"min"`
		Max int `mapstructure:"max"`
	} `mapstructure:"text_length"`
	Render *renderSpec `mapstructure:"render"`
}

type selectorSpec struct {
	CSS  string `mapstructure:"css"`
	Attr string `mapstructure:"attr"`
}

type patternSpec struct {
	Name string `mapstructure:"name"`
	Expr string `mapstructure:"expr"`
}

type renderSpec struct {
	PriceSelector    string        `mapstructure:"price_selector"`
	FallbackSelector string        `mapstructure:"fallback_selector"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	WaitTimeout      time.Duration `mapstructure:"wait_timeout"`
}

// LoadFile registers every source defined in a YAML, JSON or TOML file.
// Custom selectors are added ahead of the generic fallbacks of the base
// source; custom patterns replace the base pattern chain.
func (r *Registry) LoadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var spec fileSpec
	if err := v.Unmarshal(&spec); err != nil {
		return fmt.Errorf("failed to decode sources file %s: %w", path, err)
	}
	if len(spec.Sources) == 0 {
		return fmt.Errorf("sources file %s defines no sources", path)
	}

	for _, s := range spec.Sources {
		c, err := r.build(s)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := r.Register(c); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func (r *Registry) build(s sourceSpec) (Config, error) {
	c := Config{
		Bounds:    parser.DefaultBounds(),
		Patterns:  parser.DefaultPatterns(),
		Selectors: parser.DefaultSelectors(),
	}
	if s.Extends != "" {
		base, err := r.Get(s.Extends)
		if err != nil {
			return Config{}, err
		}
		c = base
	} else if existing, err := r.Get(s.Name); err == nil {
		c = existing
	}

	c.Name = s.Name
	if s.LinkColumn > 0 {
		c.LinkColumn = s.LinkColumn
	}
	if s.MinColumns > 0 {
		c.MinColumns = s.MinColumns
	}
	if c.MinColumns <= c.LinkColumn {
		c.MinColumns = c.LinkColumn + 1
	}
	if s.Bounds != nil {
		c.Bounds = *s.Bounds
	}

	if len(s.Selectors) > 0 {
		extra := make([]parser.Selector, 0, len(s.Selectors))
		for _, sel := range s.Selectors {
			if sel.Attr != "" {
				extra = append(extra, parser.Attr(sel.CSS, sel.Attr))
			} else {
				extra = append(extra, parser.Element(sel.CSS))
			}
		}
		c.Selectors = append(extra, c.Selectors...)
	}

	switch strings.ToLower(s.PatternSet) {
	case "":
	case "default":
		c.Patterns = parser.DefaultPatterns()
	case "loose":
		c.Patterns = parser.LoosePatterns()
	default:
		return Config{}, fmt.Errorf("source %s: unknown pattern set %q", s.Name, s.PatternSet)
	}
	if len(s.Patterns) > 0 {
		patterns := make([]*parser.Pattern, 0, len(s.Patterns))
		for i, p := range s.Patterns {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("%s-%d", strings.ToLower(s.Name), i+1)
			}
			compiled, err := parser.NewPattern(name, p.Expr)
			if err != nil {
				return Config{}, fmt.Errorf("source %s: %w", s.Name, err)
			}
			patterns = append(patterns, compiled)
		}
		c.Patterns = patterns
	}

	if len(s.Containers) > 0 {
		c.Containers = s.Containers
	}
	if len(s.ScriptKeys) > 0 {
		c.ScriptKeys = s.ScriptKeys
	}
	if s.TextLength != nil {
		c.MinTextLen, c.MaxTextLen = s.TextLength.Min, s.TextLength.Max
	}
	if s.Render != nil {
		c.Render = &RenderConfig{
			PriceSelector:    s.Render.PriceSelector,
			FallbackSelector: s.Render.FallbackSelector,
			SettleDelay:      s.Render.SettleDelay,
			WaitTimeout:      s.Render.WaitTimeout,
		}
	}

	return c, nil
}
