package parser

import (
	"errors"
)

var (
	ErrParseFailure  = errors.New("failed to parse HTML")
	ErrPriceNotFound = errors.New("price not found")
)

// Parser turns a product page into a canonical price string.
type Parser interface {
	ExtractPrice(html string) (string, error)
	ExtractFromText(text string) (string, bool)
}
