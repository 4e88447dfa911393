package source

import (
	"time"

	"github.com/maltedev/competitor-price-scraper/internal/parser"
)

func Naheed() Config {
	return Config{
		Name:       "Naheed",
		LinkColumn: 4,
		MinColumns: 6,
		Bounds:     parser.DefaultBounds(),
		Selectors: parser.DefaultSelectors(
			parser.Element(`span[class="price"]`),
			parser.Element(`span[class*="special-price"]`),
			parser.Element(`span[class="price-final"]`),
			parser.Element(`div[class*="product-info-price"] span[class="price"]`),
			parser.Element(`span[data-price-type="finalPrice"]`),
			parser.Element(`div[class="price-box"] span[class="price"]`),
			parser.Element(`span[class="amount"]`),
		),
		Patterns: parser.DefaultPatterns(),
	}
}

func Diamond() Config {
	return Config{
		Name:       "Diamond",
		LinkColumn: 3,
		MinColumns: 6,
		Bounds:     parser.DefaultBounds(),
		Selectors:  parser.DefaultSelectors(),
		Patterns:   parser.DefaultPatterns(),
	}
}

// Metro renders prices client side. The HTML options still apply when the
// source runs without a browser.
func Metro() Config {
	el := parser.Element
	return Config{
		Name:       "Metro",
		LinkColumn: 4,
		MinColumns: 5,
		Bounds:     parser.Bounds{Min: 1, Max: 100000},
		Selectors: []parser.Selector{
			el("p.CategoryGrid_product_details_price__dNQQQ"),
			el(".product-price"), el(".price-display"), el(".price-value"),
			el(".product-price-value"), el(".price-amount"), el(".product-amount"),
			el(".selling-price"), el(".offer-price"), el(".discount-price"), el(".final-price"),
			el(".price-box"), el(".price-container"), el(".product-price-box"),
			el(".price-wrapper"), el(".price-section"), el(".product-price-section"),
			el(".product-details-price"), el(".current-price"), el(".regular-price"),
			el(".product-price-display"), el(".price-text"), el(".price-label"),
			el(".price"), el(".amount"),
			el(`[class*="price"]`), el(`[class*="Price"]`), el(`[class*="amount"]`),
			el(`[class*="Amount"]`), el(`[class*="cost"]`), el(`[class*="Cost"]`),
			el("[data-price]"), el("[data-amount]"), el("[data-value]"),
			el(".cost"), el(".value"), el(".product-cost"), el(".product-value"),
		},
		Patterns:   parser.LoosePatterns(),
		Containers: []string{"main", ".main-content", ".content", ".product-content", ".product-details", ".product-info", ".product-summary"},
		ScriptKeys: []string{"sell_price", "price"},
		MinTextLen: 3,
		MaxTextLen: 100,
		Render: &RenderConfig{
			PriceSelector:    "p.CategoryGrid_product_details_price__dNQQQ",
			FallbackSelector: "p.CategoryGrid_product_price__Svf8T",
			SettleDelay:      5 * time.Second,
			WaitTimeout:      20 * time.Second,
		},
	}
}

func builtins() []Config {
	return []Config{Naheed(), Diamond(), Metro()}
}
