package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is one free-text price rule. The first capture group holds the
// amount. Digit-bounded patterns only accept amounts that are not glued to
// further digits on either side.
type Pattern struct {
	Name         string
	re           *regexp.Regexp
	digitBounded bool
}

func NewPattern(name, expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", name, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("pattern %q needs a capture group", name)
	}
	return &Pattern{Name: name, re: re}, nil
}

func MustPattern(name, expr string) *Pattern {
	p, err := NewPattern(name, expr)
	if err != nil {
		panic(err)
	}
	return p
}

// boundedPattern wraps a bare-number expression so that it cannot start in
// the middle of a digit run.
func boundedPattern(name, expr string) *Pattern {
	p := MustPattern(name, `(?:^|\D)(`+expr+`)`)
	p.digitBounded = true
	return p
}

func (p *Pattern) String() string {
	return p.Name
}

// Candidates returns every captured amount in document order.
func (p *Pattern) Candidates(text string) []string {
	matches := p.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[2] < 0 {
			continue
		}
		value := text[m[2]:m[3]]
		if p.digitBounded {
			if insideGroup(text, m[2]) {
				continue
			}
			var ok bool
			if value, ok = trimToBoundary(text, value, m[3]); !ok {
				continue
			}
		}
		out = append(out, value)
	}
	return out
}

// trimToBoundary rejects a match followed by another digit. A trailing
// fraction is dropped first, mirroring how a backtracking engine would
// settle on the integer part of "1234.567".
func trimToBoundary(text, value string, end int) (string, bool) {
	if !digitAt(text, end) {
		return value, true
	}
	if dot := strings.LastIndexByte(value, '.'); dot > 0 {
		return value[:dot], true
	}
	return "", false
}

// insideGroup reports whether start continues a number such as "1,299" or
// "12.500" whose leading digits were consumed before it.
func insideGroup(text string, start int) bool {
	if start < 2 {
		return false
	}
	sep := text[start-1]
	return (sep == ',' || sep == '.') && digitAt(text, start-2)
}

func digitAt(text string, i int) bool {
	return i < len(text) && text[i] >= '0' && text[i] <= '9'
}

// DefaultPatterns is the general pattern chain, most specific first. The
// bare-number rules never start inside a grouped number, so "1,299" does
// not also yield "299".
func DefaultPatterns() []*Pattern {
	const amount = `([\d,]+(?:\.\d{2})?)`
	return []*Pattern{
		MustPattern("rs-prefix", `(?i)Rs\.?\s*`+amount),
		MustPattern("pkr-prefix", `(?i)PKR\s*`+amount),
		MustPattern("usd-prefix", `(?i)USD\s*`+amount),

		MustPattern("label-rs", `(?i)Price:?\s*Rs\.?\s*`+amount),
		MustPattern("label-pkr", `(?i)Price:?\s*PKR\s*`+amount),
		MustPattern("label-usd", `(?i)Price:?\s*USD\s*`+amount),

		MustPattern("rs-suffix", `(?i)`+amount+`\s*Rs`),
		MustPattern("pkr-suffix", `(?i)`+amount+`\s*PKR`),
		MustPattern("usd-suffix", `(?i)`+amount+`\s*USD`),

		MustPattern("data-price-literal", `(?i)data-price=["']([\d,]+(?:\.\d{2})?)["']`),
		MustPattern("product-price-literal", `(?i)product_price["']?:\s*["']?([\d,]+(?:\.\d{2})?)`),

		boundedPattern("bare-number", `\d{3,6}(?:\.\d{2})?`),
		boundedPattern("grouped-thousands", `\d{1,3}(?:,\d{3})+(?:\.\d{2})?`),
	}
}

// LoosePatterns is the permissive chain used by JS-rendered sources whose
// price elements hold little besides the number itself.
func LoosePatterns() []*Pattern {
	const amount = `([\d,]+(?:\.\d{2})?)`
	return []*Pattern{
		MustPattern("rs-prefix", `(?i)Rs\.?\s*`+amount),
		MustPattern("pkr-prefix", `(?i)PKR\s*`+amount),
		MustPattern("label-rs", `(?i)Price:\s*Rs\.?\s*`+amount),
		MustPattern("rs-suffix", `(?i)`+amount+`\s*Rs`),
		MustPattern("pkr-suffix", `(?i)`+amount+`\s*PKR`),
		MustPattern("any-number", amount),
		MustPattern("label", `(?i)Price\s*:?\s*`+amount),
	}
}
