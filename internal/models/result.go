package models

import (
	"strings"
)

// NoPrice is recorded when no valid price could be obtained for a row.
const NoPrice = "none"

type CatalogRow struct {
	SKU           string `json:"sku"`
	BaselinePrice string `json:"my_price"`
	CompetitorURL string `json:"competitor_url"`
	Line          int    `json:"line"`
}

// HasURL reports whether the row carries a competitor link worth fetching.
func (r CatalogRow) HasURL() bool {
	return strings.TrimSpace(r.CompetitorURL) != ""
}

type ScrapeResult struct {
	SKU             string `json:"sku"`
	BaselinePrice   string `json:"my_price"`
	CompetitorPrice string `json:"competitor_price"`
	CompetitorURL   string `json:"competitor_url"`
}

func NewScrapeResult(row CatalogRow, price string) ScrapeResult {
	if price == "" {
		price = NoPrice
	}
	return ScrapeResult{
		SKU:             row.SKU,
		BaselinePrice:   row.BaselinePrice,
		CompetitorPrice: price,
		CompetitorURL:   row.CompetitorURL,
	}
}

func (r ScrapeResult) Found() bool {
	return r.CompetitorPrice != NoPrice
}

// MergedRecord is one row of the shared competitor table. Columns holds the
// per-source price/link columns keyed by column name.
type MergedRecord struct {
	SKU           string            `json:"sku"`
	BaselinePrice string            `json:"my_price"`
	Columns       map[string]string `json:"columns"`
}

func NewMergedRecord(sku string) *MergedRecord {
	return &MergedRecord{
		SKU:     sku,
		Columns: make(map[string]string),
	}
}
