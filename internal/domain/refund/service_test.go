package refund

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/checkout"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/storage/memory"
)

// fixture sells 3 units of a 100.00 product with a flat 50 discount.
type fixture struct {
	store   *memory.Store
	refunds *Service
	invoice *checkout.Invoice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	tea := product.Product{ID: "001", Name: "Tea", Category: "Drinks", Quantity: 10,
		UnitPrice: decimal.NewFromInt(80), RetailPrice: decimal.NewFromInt(100)}
	cake := product.Product{ID: "002", Name: "Cake", Category: "Bakery", Quantity: 5,
		UnitPrice: decimal.NewFromInt(10), RetailPrice: decimal.NewFromInt(12)}
	require.NoError(t, store.Upsert(ctx, &tea))
	require.NoError(t, store.Upsert(ctx, &cake))

	c := cart.New(pricing.Policy{})
	_, err := c.Add(tea, 3, pricing.Discount{Kind: pricing.Flat, Value: decimal.NewFromInt(50)})
	require.NoError(t, err)
	_, err = c.Add(cake, 2, pricing.None)
	require.NoError(t, err)

	inv, err := checkout.NewService(store, checkout.Config{}).Checkout(ctx, c, checkout.Request{})
	require.NoError(t, err)

	s := NewService(store, store)
	s.now = func() time.Time { return time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC) }
	return &fixture{store: store, refunds: s, invoice: inv}
}

func (f *fixture) teaSaleID() int64 { return f.invoice.Lines[0].SaleID }

func (f *fixture) quantity(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func TestService_RefundPartialThenOverRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.Equal(t, 7, f.quantity(t, "001"))

	ret, err := f.refunds.Refund(ctx, Request{SaleID: f.teaSaleID(), ProductID: "001", Quantity: 1, Reason: "damaged"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("83.33").Equal(ret.Amount), ret.Amount.String())
	assert.Equal(t, "damaged", ret.Reason)
	assert.NotZero(t, ret.ID)
	assert.Equal(t, 8, f.quantity(t, "001"))

	_, err = f.refunds.Refund(ctx, Request{SaleID: f.teaSaleID(), ProductID: "001", Quantity: 3, Reason: "x"})
	var over *failure.OverRefundError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, 1, over.AlreadyRefunded)
	assert.Equal(t, 3, over.Sold)
	assert.Equal(t, 8, f.quantity(t, "001"), "rejected refund leaves stock unchanged")
	assert.Len(t, f.store.Returns(), 1)
}

func TestService_RefundHugeQuantityIsOverRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.refunds.Refund(ctx, Request{SaleID: f.teaSaleID(), ProductID: "001", Quantity: 1, Reason: "damaged"})
	require.NoError(t, err)

	_, err = f.refunds.Refund(ctx, Request{SaleID: f.teaSaleID(), ProductID: "001", Quantity: math.MaxInt, Reason: "x"})
	var over *failure.OverRefundError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, math.MaxInt, over.Requested)
	assert.Equal(t, 8, f.quantity(t, "001"))
	assert.Len(t, f.store.Returns(), 1)
}

func TestService_RefundFullRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var total decimal.Decimal
	for range 3 {
		ret, err := f.refunds.Refund(ctx, Request{SaleID: f.teaSaleID(), ProductID: "001", Quantity: 1, Reason: "unwanted"})
		require.NoError(t, err)
		total = total.Add(ret.Amount)
	}

	assert.Equal(t, 10, f.quantity(t, "001"))
	assert.True(t, decimal.RequireFromString("249.99").Equal(total), total.String())

	_, err := f.refunds.Refund(ctx, Request{SaleID: f.teaSaleID(), ProductID: "001", Quantity: 1, Reason: "again"})
	assert.ErrorIs(t, err, failure.OverRefund)
}

func TestService_RefundValidation(t *testing.T) {
	f := newFixture(t)
	id := f.teaSaleID()

	tests := []struct {
		name string
		req  Request
		want failure.Kind
	}{
		{"empty reason", Request{SaleID: id, ProductID: "001", Quantity: 1, Reason: "  "}, failure.Validation},
		{"zero quantity", Request{SaleID: id, ProductID: "001", Quantity: 0, Reason: "x"}, failure.Validation},
		{"negative quantity", Request{SaleID: id, ProductID: "001", Quantity: -1, Reason: "x"}, failure.Validation},
		{"missing sale id", Request{ProductID: "001", Quantity: 1, Reason: "x"}, failure.Validation},
		{"missing product id", Request{SaleID: id, Quantity: 1, Reason: "x"}, failure.Validation},
		{"unknown sale", Request{SaleID: 999, ProductID: "001", Quantity: 1, Reason: "x"}, failure.NotFound},
		{"product not on sale", Request{SaleID: id, ProductID: "002", Quantity: 1, Reason: "x"}, failure.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.refunds.Refund(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 7, f.quantity(t, "001"))
			assert.Empty(t, f.store.Returns())
		})
	}
}

func TestService_ConcurrentRefundsRespectCap(t *testing.T) {
	f := newFixture(t)

	const workers = 5
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		okay int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.refunds.Refund(context.Background(), Request{SaleID: f.teaSaleID(), ProductID: "001", Quantity: 1, Reason: "rush"})
			if err == nil {
				mu.Lock()
				okay++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, failure.OverRefund)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, okay)
	assert.Equal(t, 10, f.quantity(t, "001"))
}

func TestService_Refundable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.refunds.Refund(ctx, Request{SaleID: f.teaSaleID(), ProductID: "001", Quantity: 2, Reason: "stale"})
	require.NoError(t, err)

	lines, err := f.refunds.Refundable(ctx, f.invoice.Lines[1].SaleID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	byProduct := map[string]Line{}
	for _, l := range lines {
		byProduct[l.Sale.ProductID] = l
	}
	assert.Equal(t, 2, byProduct["001"].Refunded)
	assert.Equal(t, 1, byProduct["001"].Remaining)
	assert.Equal(t, 0, byProduct["002"].Refunded)
	assert.Equal(t, 2, byProduct["002"].Remaining)

	_, err = f.refunds.Refundable(ctx, 404)
	assert.ErrorIs(t, err, failure.NotFound)
	_, err = f.refunds.Refundable(ctx, 0)
	assert.ErrorIs(t, err, failure.Validation)
}

func TestService_RefundAmountMatchesSale(t *testing.T) {
	f := newFixture(t)
	row, err := f.store.Get(context.Background(), f.teaSaleID())
	require.NoError(t, err)

	ret, err := f.refunds.Refund(context.Background(), Request{SaleID: row.ID, ProductID: "001", Quantity: 2, Reason: "x"})
	require.NoError(t, err)
	assert.True(t, row.RefundAmount(2).Equal(ret.Amount))
}
