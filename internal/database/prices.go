package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/competitor-price-scraper/internal/models"
	"github.com/maltedev/competitor-price-scraper/internal/scraper"
	"github.com/maltedev/competitor-price-scraper/internal/source"
)

const (
	DefaultTable = "unified_competitor_prices"

	skuColumn      = "sku"
	baselineColumn = "my_price"
)

// PriceStore keeps the shared competitor table in PostgreSQL. Columns are
// added per source and never dropped.
type PriceStore struct {
	db     *DB
	table  string
	logger *slog.Logger
}

var (
	_ scraper.MergeStore   = (*PriceStore)(nil)
	_ scraper.RecordReader = (*PriceStore)(nil)
)

func NewPriceStore(db *DB, table string, logger *slog.Logger) *PriceStore {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceStore{
		db:     db,
		table:  table,
		logger: logger.With("component", "price_store", "table", table),
	}
}

func (s *PriceStore) Migrate(ctx context.Context, cols source.Columns) error {
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range migrationSQL(s.table, cols) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to migrate %s: %w", s.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("table ready", "price_column", cols.Price, "link_column", cols.Link)
	return nil
}

func (s *PriceStore) Upsert(ctx context.Context, results []models.ScrapeResult, cols source.Columns) error {
	if len(results) == 0 {
		return nil
	}

	query := upsertSQL(s.table, cols)

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range results {
			batch.Queue(query, r.SKU, r.BaselinePrice, r.CompetitorPrice, r.CompetitorURL)
		}

		br := tx.SendBatch(ctx, batch)
		for _, r := range results {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to upsert sku %s: %w", r.SKU, err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return err
	}

	s.logger.Info("saved results", "count", len(results))
	return nil
}

func (s *PriceStore) Get(ctx context.Context, sku string) (*models.MergedRecord, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", ident(s.table), ident(skuColumn))

	rows, err := s.db.pool.Query(ctx, query, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to query sku %s: %w", sku, err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", scraper.ErrRecordNotFound, sku)
		}
		return nil, fmt.Errorf("failed to read sku %s: %w", sku, err)
	}

	return recordFromRow(row), nil
}

func (s *PriceStore) List(ctx context.Context, limit, offset int) ([]models.MergedRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT $1 OFFSET $2", ident(s.table), ident(skuColumn))

	rows, err := s.db.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	records := make([]models.MergedRecord, 0, len(maps))
	for _, m := range maps {
		records = append(records, *recordFromRow(m))
	}
	return records, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// migrationSQL creates the table when absent and appends the source's
// column pair. PostgreSQL has no column positioning so new columns go last.
func migrationSQL(table string, cols source.Columns) []string {
	t := ident(table)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s VARCHAR(255) PRIMARY KEY,
			%s VARCHAR(50)
		)`, t, ident(skuColumn), ident(baselineColumn)),
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s VARCHAR(50)", t, ident(cols.Price)),
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT", t, ident(cols.Link)),
	}
}

// upsertSQL only names my_price and the source's own columns so other
// sources' values survive the conflict update.
func upsertSQL(table string, cols source.Columns) string {
	names := []string{ident(skuColumn), ident(baselineColumn), ident(cols.Price), ident(cols.Link)}

	updates := make([]string, 0, len(names)-1)
	for _, n := range names[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", n, n))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ($1, $2, $3, $4) ON CONFLICT (%s) DO UPDATE SET %s",
		ident(table), strings.Join(names, ", "), ident(skuColumn), strings.Join(updates, ", "))
}

func recordFromRow(row map[string]any) *models.MergedRecord {
	rec := models.NewMergedRecord(stringValue(row[skuColumn]))
	rec.BaselinePrice = stringValue(row[baselineColumn])

	for name, v := range row {
		if name == skuColumn || name == baselineColumn {
			continue
		}
		rec.Columns[name] = stringValue(v)
	}
	return rec
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
