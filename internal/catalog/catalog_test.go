package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/posledger/internal/domain/ident"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/storage/memory"
)

func TestParseLine(t *testing.T) {
	p, err := ParseLine([]byte(`{"sku":"A-1","name":"Tea","category":"Drinks","supplier":"S01","quantity":5,"unit_price":"2.50","tax_percent":12,"reorder_level":2,"extra":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, "A-1", p.ID)
	assert.Equal(t, "S01", p.SupplierID)
	assert.Equal(t, 5, p.Quantity)
	assert.True(t, decimal.RequireFromString("2.5").Equal(p.UnitPrice))
	assert.True(t, decimal.NewFromInt(12).Equal(p.TaxPercent))

	_, err = ParseLine([]byte(`{"quantity":"five"}`))
	assert.Error(t, err)
	_, err = ParseLine([]byte(`not json`))
	assert.Error(t, err)
}

func TestReadFeed_SkipsBlankLines(t *testing.T) {
	feed := "{\"name\":\"a\"}\n\n   \n{\"name\":\"b\"}\n{oops\n"
	var recs []Record
	err := ReadFeed(context.Background(), strings.NewReader(feed), func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 4, recs[1].Line)
	assert.NoError(t, recs[1].Err)
	assert.Error(t, recs[2].Err)

	stop := errors.New("stop")
	err = ReadFeed(context.Background(), strings.NewReader(feed), func(Record) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestDedup(t *testing.T) {
	d := NewDedup(100, 0.01)
	assert.True(t, d.First("001"))
	assert.False(t, d.First("001"))
	assert.True(t, d.First("002"))
	assert.Zero(t, d.FalsePositives())
}

func writeFeed(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	body := strings.Join(lines, "\n") + "\n"
	if filepath.Ext(name) != ".gz" {
		_, err = f.WriteString(body)
		require.NoError(t, err)
		return path
	}
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func TestImporter_Import(t *testing.T) {
	dir := t.TempDir()
	a := writeFeed(t, dir, "north.ndjson.gz",
		`{"sku":"R-100","name":"Rice","category":"Grocery","supplier_id":"S01","quantity":40,"unit_price":1.2,"tax_percent":5}`,
		`{"sku":"S-101","name":"Salt","category":"Grocery","supplier_id":"S01","quantity":10,"unit_price":0.5}`,
		`{"name":"","category":"Grocery","supplier_id":"S01"}`,
	)
	b := writeFeed(t, dir, "south.ndjson",
		`{"sku":"R-100","name":"Rice","category":"Grocery","supplier_id":"S02","quantity":40,"unit_price":1.2,"tax_percent":5}`,
		`{"name":"Sugar","category":"Grocery","supplier_id":"S02","quantity":3,"unit_price":"0.90"}`,
		`{broken`,
	)

	store := memory.New()
	im := NewImporter(product.NewService(store, store, ident.DefaultWidth), NewDedup(1000, 0.001))
	stats, err := im.Import(context.Background(), []string{a, b})
	require.NoError(t, err)

	assert.Equal(t, Stats{Read: 6, Saved: 3, Duplicates: 1, Rejected: 2}, stats)

	ps, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 3)

	rice, err := store.GetByID(context.Background(), "R-100")
	require.NoError(t, err)
	assert.Equal(t, "Rice", rice.Name)
	assert.True(t, decimal.RequireFromString("1.26").Equal(rice.RetailPrice), rice.RetailPrice.String())

	sugar, err := store.GetByID(context.Background(), "001")
	require.NoError(t, err, "products without a SKU get a generated one")
	assert.Equal(t, "Sugar", sugar.Name)
}

type failingSaver struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSaver) Save(context.Context, product.Product) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, errors.New("db down")
}

func TestImporter_AbortsOnStoreError(t *testing.T) {
	dir := t.TempDir()
	a := writeFeed(t, dir, "a.ndjson", `{"sku":"1","name":"x","category":"c","supplier_id":"s"}`)

	_, err := NewImporter(&failingSaver{}, NewDedup(10, 0.01)).Import(context.Background(), []string{a})
	assert.ErrorContains(t, err, "db down")

	_, err = NewImporter(&failingSaver{}, NewDedup(10, 0.01)).Import(context.Background(), []string{filepath.Join(dir, "missing.gz")})
	assert.Error(t, err)
}
