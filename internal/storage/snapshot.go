package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/maltedev/competitor-price-scraper/internal/models"
	"github.com/maltedev/competitor-price-scraper/internal/source"
)

// SnapshotHeader is the column order of a per run output file.
func SnapshotHeader(cols source.Columns) []string {
	return []string{"SKU", "my_price", cols.Price, cols.Link}
}

// WriteSnapshot overwrites path with this run's results. The format follows
// the extension: .xlsx for a workbook, anything else is CSV.
func WriteSnapshot(path string, cols source.Columns, results []models.ScrapeResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeXLSX(path, cols, results)
	}
	return writeCSV(path, cols, results)
}

func writeCSV(path string, cols source.Columns, results []models.ScrapeResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(SnapshotHeader(cols)); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write([]string{r.SKU, r.BaselinePrice, r.CompetitorPrice, r.CompetitorURL}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return file.Close()
}

func writeXLSX(path string, cols source.Columns, results []models.ScrapeResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := SnapshotHeader(cols)
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := sw.SetRow("A1", row); err != nil {
		return err
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, []any{r.SKU, r.BaselinePrice, r.CompetitorPrice, r.CompetitorURL}); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
