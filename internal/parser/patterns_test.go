package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedPatternCandidates(t *testing.T) {
	bare := boundedPattern("bare-number", `\d{3,6}(?:\.\d{2})?`)
	grouped := boundedPattern("grouped-thousands", `\d{1,3}(?:,\d{3})+(?:\.\d{2})?`)

	tests := []struct {
		name     string
		pattern  *Pattern
		text     string
		expected []string
	}{
		{"Document order", bare, "100 and 2500.50", []string{"100", "2500.50"}},
		{"Too many digits", bare, "1234567", []string{}},
		{"Fraction dropped before digit", bare, "1234.567", []string{"1234"}},
		{"Short numbers ignored", bare, "1 2 34", []string{}},
		{"Grouped", grouped, "a 1,234,567.00 b", []string{"1,234,567.00"}},
		{"Grouped glued to digit", grouped, "1,2345", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pattern.Candidates(tt.text)
			if len(tt.expected) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewPattern(t *testing.T) {
	p, err := NewPattern("custom", `Total\s*([\d,]+)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"1,200"}, p.Candidates("Total 1,200"))

	_, err = NewPattern("no-group", `Total\s*\d+`)
	assert.Error(t, err)

	_, err = NewPattern("broken", `(`)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Rs. 1,200", Normalize("  Rs.\r\n\t1,200  "))
	assert.Equal(t, "line one line two", Normalize(`line one\nline two`))
	assert.Equal(t, "a b", Normalize("a\x00\x07b"))
	assert.Equal(t, "", Normalize(""))
}
