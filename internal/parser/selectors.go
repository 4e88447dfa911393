package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type SelectorKind int

const (
	// AttrSelector reads one attribute of every matching node.
	AttrSelector SelectorKind = iota
	// ElementSelector reads the visible text of every matching node.
	ElementSelector
)

// Selector is a structural rule for locating a node likely to hold a price.
type Selector struct {
	Kind SelectorKind
	CSS  string
	Attr string
}

func Attr(css, attr string) Selector {
	return Selector{Kind: AttrSelector, CSS: css, Attr: attr}
}

func Element(css string) Selector {
	return Selector{Kind: ElementSelector, CSS: css}
}

func (s Selector) String() string {
	if s.Kind == AttrSelector {
		return s.CSS + "@" + s.Attr
	}
	return s.CSS
}

type CandidateKind int

const (
	AttributeValue CandidateKind = iota
	ElementText
)

// Candidate is an unvalidated value pulled from a selector match.
type Candidate struct {
	Kind        CandidateKind
	Text        string
	ContentAttr string
}

// priceAttrs are checked in order on element matches; the first present
// one replaces the visible text.
var priceAttrs = []string{"content", "data-price", "data-amount"}

// Value is the string handed to the pattern chain.
func (c Candidate) Value() string {
	if c.Kind == ElementText && c.ContentAttr != "" {
		return c.ContentAttr
	}
	return c.Text
}

// Candidates evaluates the selector against doc in document order.
func (s Selector) Candidates(doc *goquery.Document) []Candidate {
	var out []Candidate

	doc.Find(s.CSS).Each(func(_ int, sel *goquery.Selection) {
		switch s.Kind {
		case AttrSelector:
			if v, ok := sel.Attr(s.Attr); ok {
				out = append(out, Candidate{Kind: AttributeValue, Text: strings.TrimSpace(v)})
			}
		case ElementSelector:
			c := Candidate{Kind: ElementText, Text: strings.TrimSpace(sel.Text())}
			for _, name := range priceAttrs {
				if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
					c.ContentAttr = strings.TrimSpace(v)
					break
				}
			}
			out = append(out, c)
		}
	})

	return out
}

// DefaultSelectors is the general selector chain; earlier entries win.
// Source specific selectors are spliced in before the generic data
// attribute and id rules.
func DefaultSelectors(extra ...Selector) []Selector {
	selectors := []Selector{
		Attr(`meta[property="product:price:amount"]`, "content"),
		Attr(`meta[itemprop="price"]`, "content"),

		Element(".price"),
		Element(".product-price"),
		Element(".current-price"),
		Element(".special-price"),
		Element(".amount"),
		Element(`[class*="price"]:not([class*="old"])`),
	}

	selectors = append(selectors, extra...)

	return append(selectors,
		Element("[data-price]"),
		Element("[data-product-price]"),

		Element("#price"),
		Element("#productPrice"),

		Element(`[class*="amount"]`),
		Element(`[class*="cost"]`),

		Element(`:containsOwn("Rs.")`),
		Element(`:containsOwn("PKR")`),
	)
}
