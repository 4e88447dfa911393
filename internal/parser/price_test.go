package parser

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrice(t *testing.T) {
	extractor := NewPriceExtractor(DefaultOptions(), nil)

	tests := []struct {
		name     string
		html     string
		expected string
		hasError bool
	}{
		{
			name: "Meta tag wins over class based element",
			html: `<html><head><meta property="product:price:amount" content="2500.00"></head>
				<body><span class="price">Rs. 3,100</span></body></html>`,
			expected: "2500.00",
		},
		{
			name:     "Itemprop meta",
			html:     `<meta itemprop="price" content="1,299"><div class="amount">Rs. 999</div>`,
			expected: "1299.00",
		},
		{
			name:     "Exact price class",
			html:     `<div class="product-info"><span class="price">Rs. 1,499</span></div>`,
			expected: "1499.00",
		},
		{
			name:     "Old price class is skipped by substring rule",
			html:     `<span class="old-price">Rs. 5,000</span><span class="final-price">Rs. 4,200</span>`,
			expected: "4200.00",
		},
		{
			name:     "Data attribute preferred over visible text",
			html:     `<span class="price" data-price="1999">Now only!</span>`,
			expected: "1999.00",
		},
		{
			name:     "Content attribute on element",
			html:     `<span class="current-price" content="750.50">Rs. 800</span>`,
			expected: "750.50",
		},
		{
			name:     "Invalid candidate falls through to next selector",
			html:     `<span class="price">Rs. 5</span><div id="price">PKR 2,350.75</div>`,
			expected: "2350.75",
		},
		{
			name:     "Id selector",
			html:     `<div id="productPrice">PKR 12,000</div>`,
			expected: "12000.00",
		},
		{
			name:     "Full text fallback",
			html:     `<html><body><p>Our offer today: 2750 only</p></body></html>`,
			expected: "2750.00",
		},
		{
			name:     "Malformed markup still parses",
			html:     `<div class="price"><span>Rs. 3,450<div></span>`,
			expected: "3450.00",
		},
		{
			name:     "No price anywhere",
			html:     `<html><body><p>Out of stock</p></body></html>`,
			hasError: true,
		},
		{
			name:     "Numbers in script and style are not prices",
			html:     `<script>var cacheTTL = 86400;</script><style>.x{width:1200px}</style><body><p>Out of stock</p></body>`,
			hasError: true,
		},
		{
			name: "Visible text wins over script constants",
			html: `<html><head><script>var timeout = 30000;</script></head>
				<body><p>Today only 1850 at the counter</p><noscript>Enable JS, build 99999</noscript></body></html>`,
			expected: "1850.00",
		},
		{
			name:     "Empty content",
			html:     "   ",
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := extractor.ExtractPrice(tt.html)

			if tt.hasError {
				assert.ErrorIs(t, err, ErrPriceNotFound)
				assert.Empty(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestExtractFromText(t *testing.T) {
	extractor := NewPriceExtractor(DefaultOptions(), nil)

	tests := []struct {
		name     string
		text     string
		expected string
		found    bool
	}{
		{"Labelled price beats quantity", "Price: Rs. 1,234.50 (Qty: 2)", "1234.50", true},
		{"Skips spurious small amount", "Rs. 5 off, now Rs. 1,499", "1499.00", true},
		{"PKR prefix", "PKR 45,000", "45000.00", true},
		{"USD prefix", "usd 120.99", "120.99", true},
		{"Currency suffix", "1,850 Rs only", "1850.00", true},
		{"Data attribute literal", `<span data-price="3200">`, "3200.00", true},
		{"Product price literal", `var product_price: "870"`, "870.00", true},
		{"Bare number", "Total 35000 incl. tax", "35000.00", true},
		{"Grouped number is not split", "Total 1,299 incl. tax", "1299.00", true},
		{"Glued digits rejected", "Ref 12345678", "", false},
		{"Out of range", "Rs. 2,000,000", "", false},
		{"Whitespace collapsed", "Rs.\n\t  2,500", "2500.00", true},
		{"Empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := extractor.ExtractFromText(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExtractPriceFromScriptData(t *testing.T) {
	opts := DefaultOptions()
	opts.ScriptKeys = []string{"sell_price", "price"}
	extractor := NewPriceExtractor(opts, nil)

	html := `<html><head><script>window.__DATA__ = {"price":0,"sell_price":1450};</script></head>
		<body><span class="price">Rs. 1,900</span></body></html>`

	result, err := extractor.ExtractPrice(html)
	require.NoError(t, err)
	assert.Equal(t, "1450.00", result)
}

func TestExtractPriceFromContainers(t *testing.T) {
	opts := DefaultOptions()
	opts.Selectors = []Selector{Element(".does-not-exist")}
	opts.Containers = []string{"main"}
	extractor := NewPriceExtractor(opts, nil)

	html := `<header>Call 0300 1234567</header><main><p>Only 4,999 left at this price</p></main>`

	result, err := extractor.ExtractPrice(html)
	require.NoError(t, err)
	assert.Equal(t, "4999.00", result)
}

func TestExtractPriceTextLengthFilter(t *testing.T) {
	opts := DefaultOptions()
	opts.Selectors = []Selector{Element(".price")}
	opts.MinTextLen = 3
	opts.MaxTextLen = 20
	extractor := NewPriceExtractor(opts, nil)

	html := `<span class="price">Rs. 1,200 was the price yesterday before the sale</span><span class="price">Rs. 990</span>`

	result, err := extractor.ExtractPrice(html)
	require.NoError(t, err)
	assert.Equal(t, "990.00", result)
}

func TestFormat(t *testing.T) {
	canonical := regexp.MustCompile(`^\d+\.\d{2}$`)

	inputs := []string{"10", "1,234.5", "2500.00", "999999.999", "1,000,000", "15.", "0.5"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			out := Format(in)
			assert.Regexp(t, canonical, out)
			assert.Equal(t, out, Format(out))
		})
	}

	assert.Equal(t, "1234.50", Format("1,234.5"))
	assert.Equal(t, "abc", Format("abc"))
}

func TestBoundsIsValid(t *testing.T) {
	general := DefaultBounds()
	narrow := Bounds{Min: 1, Max: 100000}

	tests := []struct {
		name   string
		bounds Bounds
		raw    string
		valid  bool
	}{
		{"Lower edge", general, "10", true},
		{"Upper edge", general, "1,000,000", true},
		{"Below min", general, "9.99", false},
		{"Above max", general, "1000000.01", false},
		{"Narrow accepts small", narrow, "5", true},
		{"Narrow rejects large", narrow, "100,001", false},
		{"Negative", general, "-50", false},
		{"Text", general, "Rs. 50", false},
		{"Exponent", general, "1e3", false},
		{"Empty", general, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.bounds.IsValid(tt.raw))
		})
	}
}

func TestBoundsValidate(t *testing.T) {
	assert.NoError(t, DefaultBounds().Validate())
	assert.Error(t, Bounds{Min: -1, Max: 10}.Validate())
	assert.Error(t, Bounds{Min: 10, Max: 5}.Validate())
}
