package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/maltedev/competitor-price-scraper/internal/models"
	"github.com/maltedev/competitor-price-scraper/internal/scraper"
	"github.com/maltedev/competitor-price-scraper/internal/source"
)

var baseColumns = []string{"SKU", "my_price"}

type tableFile struct {
	Columns []string                        `json:"columns"`
	Records map[string]*models.MergedRecord `json:"records"`
}

// FileStore keeps the shared competitor table in a single JSON file. New
// source columns are placed directly after my_price.
type FileStore struct {
	mu       sync.RWMutex
	columns  []string
	records  map[string]*models.MergedRecord
	filename string
}

var (
	_ scraper.MergeStore   = (*FileStore)(nil)
	_ scraper.RecordReader = (*FileStore)(nil)
)

func NewFileStore(filename string) (*FileStore, error) {
	fs := &FileStore{
		records:  make(map[string]*models.MergedRecord),
		filename: filename,
	}

	if err := fs.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return fs, nil
}

func (fs *FileStore) Migrate(ctx context.Context, cols source.Columns) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	columns := slices.Clone(fs.columns)
	if len(columns) == 0 {
		columns = slices.Clone(baseColumns)
	}

	var missing []string
	for _, c := range []string{cols.Price, cols.Link} {
		if !slices.Contains(columns, c) {
			missing = append(missing, c)
		}
	}
	columns = slices.Insert(columns, len(baseColumns), missing...)

	if err := fs.save(columns, fs.records); err != nil {
		return err
	}
	fs.columns = columns
	return nil
}

func (fs *FileStore) Upsert(ctx context.Context, results []models.ScrapeResult, cols source.Columns) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !slices.Contains(fs.columns, cols.Price) || !slices.Contains(fs.columns, cols.Link) {
		return fmt.Errorf("columns %s/%s missing, run Migrate first", cols.Price, cols.Link)
	}

	// Records are copied on first write and committed once the file is saved.
	records := maps.Clone(fs.records)
	copied := make(map[string]bool, len(results))
	for _, r := range results {
		if r.SKU == "" {
			continue
		}

		if !copied[r.SKU] {
			rec := models.NewMergedRecord(r.SKU)
			if old, ok := records[r.SKU]; ok {
				rec.BaselinePrice = old.BaselinePrice
				maps.Copy(rec.Columns, old.Columns)
			}
			records[r.SKU] = rec
			copied[r.SKU] = true
		}

		rec := records[r.SKU]
		rec.BaselinePrice = r.BaselinePrice
		rec.Columns[cols.Price] = r.CompetitorPrice
		rec.Columns[cols.Link] = r.CompetitorURL
	}

	if err := fs.save(fs.columns, records); err != nil {
		return err
	}
	fs.records = records
	return nil
}

func (fs *FileStore) Get(ctx context.Context, sku string) (*models.MergedRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	rec, ok := fs.records[sku]
	if !ok {
		return nil, fmt.Errorf("%w: %s", scraper.ErrRecordNotFound, sku)
	}
	return fs.view(rec), nil
}

func (fs *FileStore) List(ctx context.Context, limit, offset int) ([]models.MergedRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	skus := make([]string, 0, len(fs.records))
	for sku := range fs.records {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(skus) {
		return []models.MergedRecord{}, nil
	}
	skus = skus[offset:]
	if limit > 0 && limit < len(skus) {
		skus = skus[:limit]
	}

	out := make([]models.MergedRecord, 0, len(skus))
	for _, sku := range skus {
		out = append(out, *fs.view(fs.records[sku]))
	}
	return out, nil
}

// Columns returns the table's column order.
func (fs *FileStore) Columns() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return slices.Clone(fs.columns)
}

// view copies rec and fills columns it has never been written to.
func (fs *FileStore) view(rec *models.MergedRecord) *models.MergedRecord {
	out := models.NewMergedRecord(rec.SKU)
	out.BaselinePrice = rec.BaselinePrice
	for _, c := range fs.columns[len(baseColumns):] {
		out.Columns[c] = rec.Columns[c]
	}
	return out
}

func (fs *FileStore) save(columns []string, records map[string]*models.MergedRecord) error {
	data, err := json.MarshalIndent(tableFile{Columns: columns, Records: records}, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := fs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, fs.filename)
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filename)
	if err != nil {
		return err
	}

	var tf tableFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("failed to decode %s: %w", fs.filename, err)
	}

	fs.columns = tf.Columns
	if tf.Records != nil {
		fs.records = tf.Records
	}
	for _, rec := range fs.records {
		if rec.Columns == nil {
			rec.Columns = make(map[string]string)
		}
	}
	return nil
}
