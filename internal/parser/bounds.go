package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var plainDecimal = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// Bounds is the inclusive range a price must fall in to be accepted.
type Bounds struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

func DefaultBounds() Bounds {
	return Bounds{Min: 10, Max: 1000000}
}

func (b Bounds) Validate() error {
	if b.Min < 0 {
		return fmt.Errorf("price bounds: min must not be negative, got %v", b.Min)
	}
	if b.Max < b.Min {
		return fmt.Errorf("price bounds: max %v is below min %v", b.Max, b.Min)
	}
	return nil
}

// IsValid strips thousands separators and checks the remainder is a
// non-negative decimal inside the bounds.
func (b Bounds) IsValid(raw string) bool {
	value, ok := parseAmount(raw)
	if !ok {
		return false
	}
	return value >= b.Min && value <= b.Max
}

// Format renders raw with exactly two fraction digits and no grouping.
// Unparseable input is returned unchanged.
func Format(raw string) string {
	value, ok := parseAmount(raw)
	if !ok {
		return raw
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func parseAmount(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" || !plainDecimal.MatchString(s) {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
