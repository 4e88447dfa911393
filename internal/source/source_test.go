package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/competitor-price-scraper/internal/parser"
)

func TestBuiltinSources(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name       string
		linkColumn int
		minColumns int
		bounds     parser.Bounds
		rendered   bool
	}{
		{"Naheed", 4, 6, parser.Bounds{Min: 10, Max: 1000000}, false},
		{"Diamond", 3, 6, parser.Bounds{Min: 10, Max: 1000000}, false},
		{"Metro", 4, 5, parser.Bounds{Min: 1, Max: 100000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := r.Get(tt.name)
			require.NoError(t, err)
			require.NoError(t, c.Validate())

			assert.Equal(t, tt.linkColumn, c.LinkColumn)
			assert.Equal(t, tt.minColumns, c.MinColumns)
			assert.Equal(t, tt.bounds, c.Bounds)
			assert.Equal(t, tt.rendered, c.Render != nil)
			assert.Equal(t, Columns{Price: tt.name + "_price", Link: tt.name + "_link"}, c.Columns())
		})
	}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()

	c, err := r.Get(" naheed ")
	require.NoError(t, err)
	assert.Equal(t, "Naheed", c.Name)
	assert.Equal(t, "naheed.csv", c.OutputFile())

	_, err = r.Get("unknown")
	assert.ErrorIs(t, err, ErrUnknownSource)

	assert.Equal(t, []string{"Diamond", "Metro", "Naheed"}, r.Names())
}

func TestConfigValidate(t *testing.T) {
	valid := Diamond()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad name", func(c *Config) { c.Name = "my source" }},
		{"link column collides", func(c *Config) { c.LinkColumn = 1 }},
		{"min columns too small", func(c *Config) { c.MinColumns = c.LinkColumn }},
		{"bad bounds", func(c *Config) { c.Bounds = parser.Bounds{Min: 5, Max: 1} }},
		{"bad selector", func(c *Config) { c.Selectors = []parser.Selector{parser.Element("div[")} }},
		{"attr selector without attr", func(c *Config) { c.Selectors = []parser.Selector{parser.Attr("meta", "")} }},
		{"render without selector", func(c *Config) { c.Render = &RenderConfig{} }},
	}

	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Diamond()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	content := `
sources:
  - name: Imtiaz
    extends: diamond
    link_column: 5
    bounds:
      min: 50
      max: 50000
    selectors:
      - css: 'meta[name="twitter:data1"]'
        attr: content
      - css: span.imtiaz-price
    patterns:
      - name: total
        expr: 'Total\s*([\d,]+)'
  - name: Chase
    link_column: 6
    pattern_set: loose
    render:
      price_selector: span.final
      fallback_selector: span.variant
      settle_delay: 3s
      wait_timeout: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r := NewRegistry()
	require.NoError(t, r.LoadFile(path))

	imtiaz, err := r.Get("imtiaz")
	require.NoError(t, err)
	assert.Equal(t, 5, imtiaz.LinkColumn)
	assert.Equal(t, 6, imtiaz.MinColumns)
	assert.Equal(t, parser.Bounds{Min: 50, Max: 50000}, imtiaz.Bounds)
	require.NotEmpty(t, imtiaz.Selectors)
	assert.Equal(t, parser.Attr(`meta[name="twitter:data1"]`, "content"), imtiaz.Selectors[0])
	assert.Equal(t, parser.Element("span.imtiaz-price"), imtiaz.Selectors[1])
	require.Len(t, imtiaz.Patterns, 1)
	assert.Equal(t, "total", imtiaz.Patterns[0].Name)

	chase, err := r.Get("Chase")
	require.NoError(t, err)
	assert.Equal(t, 6, chase.LinkColumn)
	assert.Equal(t, 7, chase.MinColumns)
	require.NotNil(t, chase.Render)
	assert.Equal(t, 3*time.Second, chase.Render.SettleDelay)
	assert.Equal(t, 10*time.Second, chase.Render.WaitTimeout)
	assert.Len(t, chase.Patterns, len(parser.LoosePatterns()))

	// built-ins stay available
	_, err = r.Get("Naheed")
	assert.NoError(t, err)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	r := NewRegistry()
	assert.Error(t, r.LoadFile(filepath.Join(dir, "missing.yaml")))
	assert.Error(t, r.LoadFile(write("empty.yaml", "sources: []\n")))
	assert.Error(t, r.LoadFile(write("badset.yaml", "sources:\n  - name: X\n    link_column: 3\n    pattern_set: fuzzy\n")))
	assert.Error(t, r.LoadFile(write("badexpr.yaml", "sources:\n  - name: X\n    link_column: 3\n    patterns:\n      - expr: '('\n")))
	assert.ErrorIs(t, r.LoadFile(write("badbase.yaml", "sources:\n  - name: X\n    extends: nobody\n")), ErrUnknownSource)
}
