package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/maltedev/competitor-price-scraper/internal/models"
)

// HeaderRows is the number of leading rows that never carry data.
const HeaderRows = 2

var (
	ErrUnsupportedFormat = errors.New("unsupported catalog format")
	ErrEmptyCatalog      = errors.New("catalog has no sheets")
)

// Read loads every row of a CSV or XLSX catalog. CSV rows keep their own
// width. XLSX rows lose trailing empty cells, so they are padded to width
// columns; wider rows are left as they are.
func Read(path string, width int) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return readCSV(path)
	case ".xlsx", ".xlsm":
		return readXLSX(path, width)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func readXLSX(path string, width int) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyCatalog
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	for i, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}

	return rows, nil
}

// Rows turns raw records into catalog rows for a source whose competitor
// link lives in linkColumn. Header rows, rows narrower than minColumns and
// rows without a SKU are dropped.
func Rows(records [][]string, linkColumn, minColumns int) []models.CatalogRow {
	var rows []models.CatalogRow

	for i, record := range records {
		if i < HeaderRows {
			continue
		}
		if len(record) < minColumns || len(record) <= linkColumn {
			continue
		}

		sku := strings.TrimSpace(record[0])
		if sku == "" {
			continue
		}

		rows = append(rows, models.CatalogRow{
			SKU:           sku,
			BaselinePrice: strings.TrimSpace(record[1]),
			CompetitorURL: strings.TrimSpace(record[linkColumn]),
			Line:          i + 1,
		})
	}

	return rows
}
