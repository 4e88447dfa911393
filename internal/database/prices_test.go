package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/competitor-price-scraper/internal/models"
	"github.com/maltedev/competitor-price-scraper/internal/scraper"
	"github.com/maltedev/competitor-price-scraper/internal/source"
)

func TestMigrationSQL(t *testing.T) {
	stmts := migrationSQL(DefaultTable, source.Columns{Price: "Naheed_price", Link: "Naheed_link"})

	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "unified_competitor_prices"`)
	assert.Contains(t, stmts[0], `"sku" VARCHAR(255) PRIMARY KEY`)
	assert.Equal(t, `ALTER TABLE "unified_competitor_prices" ADD COLUMN IF NOT EXISTS "Naheed_price" VARCHAR(50)`, stmts[1])
	assert.Equal(t, `ALTER TABLE "unified_competitor_prices" ADD COLUMN IF NOT EXISTS "Naheed_link" TEXT`, stmts[2])
}

func TestUpsertSQLTouchesOnlySourceColumns(t *testing.T) {
	query := upsertSQL(DefaultTable, source.Columns{Price: "Metro_price", Link: "Metro_link"})

	assert.Equal(t,
		`INSERT INTO "unified_competitor_prices" ("sku", "my_price", "Metro_price", "Metro_link") VALUES ($1, $2, $3, $4) `+
			`ON CONFLICT ("sku") DO UPDATE SET "my_price" = EXCLUDED."my_price", "Metro_price" = EXCLUDED."Metro_price", "Metro_link" = EXCLUDED."Metro_link"`,
		query)
	assert.NotContains(t, query, "Naheed")
}

func TestIdentQuotesHostileNames(t *testing.T) {
	assert.Equal(t, `"bad""name"`, ident(`bad"name`))
}

func TestRecordFromRow(t *testing.T) {
	rec := recordFromRow(map[string]any{
		"sku":          "A1",
		"my_price":     "100",
		"Naheed_price": "250.00",
		"Naheed_link":  nil,
	})

	assert.Equal(t, "A1", rec.SKU)
	assert.Equal(t, "100", rec.BaselinePrice)
	assert.Equal(t, map[string]string{"Naheed_price": "250.00", "Naheed_link": ""}, rec.Columns)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, Config{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	return db
}

func TestPriceStoreMerge(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	table := "prices_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	store := NewPriceStore(db, table, nil)
	t.Cleanup(func() {
		db.pool.Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", ident(table)))
	})

	naheed := source.Naheed().Columns()
	diamond := source.Diamond().Columns()

	require.NoError(t, scraper.Persist(ctx, store, diamond, []models.ScrapeResult{
		{SKU: "A", BaselinePrice: "100", CompetitorPrice: "95.00", CompetitorURL: "https://d.test/a"},
	}))

	require.NoError(t, scraper.Persist(ctx, store, naheed, []models.ScrapeResult{
		{SKU: "A", BaselinePrice: "105", CompetitorPrice: "120.00", CompetitorURL: "https://n.test/old-a"},
		{SKU: "B", BaselinePrice: "190", CompetitorPrice: "180.00", CompetitorURL: "https://n.test/b"},
	}))
	// a later run for the same SKUs overwrites the earlier values
	require.NoError(t, scraper.Persist(ctx, store, naheed, []models.ScrapeResult{
		{SKU: "A", BaselinePrice: "110", CompetitorPrice: "99.00", CompetitorURL: "https://n.test/a"},
		{SKU: "B", BaselinePrice: "200", CompetitorPrice: models.NoPrice, CompetitorURL: ""},
	}))

	a, err := store.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "110", a.BaselinePrice)
	assert.Equal(t, "95.00", a.Columns[diamond.Price])
	assert.Equal(t, "https://d.test/a", a.Columns[diamond.Link])
	assert.Equal(t, "99.00", a.Columns[naheed.Price])
	assert.Equal(t, "https://n.test/a", a.Columns[naheed.Link])

	b, err := store.Get(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "200", b.BaselinePrice)
	assert.Equal(t, models.NoPrice, b.Columns[naheed.Price])
	assert.Equal(t, "", b.Columns[naheed.Link])
	assert.Equal(t, "", b.Columns[diamond.Price])

	records, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].SKU)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, scraper.ErrRecordNotFound)
}
