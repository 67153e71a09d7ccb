package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/pricing"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/storage/memory"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, products ...product.Product) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	for i := range products {
		require.NoError(t, store.Upsert(context.Background(), &products[i]))
	}
	s := NewService(store, Config{})
	s.now = func() time.Time { return fixedNow }
	return s, store
}

func adjustStock(t *testing.T, store *memory.Store, id string, delta int) {
	t.Helper()
	require.NoError(t, store.Atomic(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.AdjustStock(ctx, id, delta)
	}))
}

func newTestProduct(id string, qty int, retail string) product.Product {
	return product.Product{
		ID:          id,
		Name:        "Product " + id,
		Category:    "General",
		Quantity:    qty,
		UnitPrice:   decimal.RequireFromString(retail),
		RetailPrice: decimal.RequireFromString(retail),
	}
}

func quantityOf(t *testing.T, store *memory.Store, id string) int {
	t.Helper()
	p, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func flat(v string) pricing.Discount {
	return pricing.Discount{Kind: pricing.Flat, Value: decimal.RequireFromString(v)}
}

func TestService_CheckoutCommitsSaleAndStock(t *testing.T) {
	ctx := context.Background()
	p := newTestProduct("001", 10, "100.00")
	s, store := newTestService(t, p)

	c := cart.New(pricing.Policy{})
	_, err := c.Add(p, 3, flat("50"))
	require.NoError(t, err)

	inv, err := s.Checkout(ctx, c, Request{SoldBy: "admin"})
	require.NoError(t, err)

	assert.Equal(t, "INV1749988800-001", inv.Number)
	assert.Equal(t, DefaultWalkInName, inv.Customer.Name)
	assert.Empty(t, inv.Customer.Phone)
	require.Len(t, inv.Lines, 1)
	assert.True(t, decimal.RequireFromString("250.00").Equal(inv.Lines[0].Total))
	assert.True(t, decimal.RequireFromString("300.00").Equal(inv.Subtotal))
	assert.True(t, decimal.RequireFromString("250.00").Equal(inv.GrandTotal))
	assert.True(t, c.Empty(), "cart is cleared after commit")

	assert.Equal(t, 7, quantityOf(t, store, "001"))

	row, err := store.Get(ctx, inv.Lines[0].SaleID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, row.InvoiceNo)
	assert.Equal(t, 3, row.Quantity)
	assert.True(t, decimal.RequireFromString("250.00").Equal(row.EffectiveTotal))
	assert.True(t, decimal.RequireFromString("300.00").Equal(row.Subtotal))
	assert.Equal(t, "admin", row.SoldBy)
	assert.Equal(t, fixedNow, row.Date)
}

func TestService_CheckoutEmptyCart(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Checkout(context.Background(), cart.New(pricing.Policy{}), Request{})
	assert.ErrorIs(t, err, failure.Validation)

	_, err = s.Checkout(context.Background(), nil, Request{})
	assert.ErrorIs(t, err, failure.Validation)
}

func TestService_CheckoutRollsBackAllLines(t *testing.T) {
	ctx := context.Background()
	a := newTestProduct("001", 10, "10.00")
	b := newTestProduct("002", 5, "20.00")
	s, store := newTestService(t, a, b)

	c := cart.New(pricing.Policy{})
	_, err := c.Add(a, 2, pricing.None)
	require.NoError(t, err)
	_, err = c.Add(b, 5, pricing.None)
	require.NoError(t, err)

	// Stock of the second line moves after it was staged.
	adjustStock(t, store, "002", -1)

	_, err = s.Checkout(ctx, c, Request{})
	var stockErr *failure.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "002", stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 4, stockErr.Available)

	assert.Equal(t, 10, quantityOf(t, store, "001"))
	assert.Equal(t, 4, quantityOf(t, store, "002"))
	recent, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
	assert.Len(t, c.Lines(), 2, "failed checkout keeps the cart")
}

func TestService_CheckoutMissingProduct(t *testing.T) {
	s, _ := newTestService(t)

	c := cart.New(pricing.Policy{})
	_, err := c.Add(newTestProduct("404", 3, "1.00"), 1, pricing.None)
	require.NoError(t, err)

	_, err = s.Checkout(context.Background(), c, Request{})
	assert.ErrorIs(t, err, failure.NotFound)
}

func TestService_CheckoutCustomerResolution(t *testing.T) {
	existing := customer.Customer{ID: "001", Name: "Asha", Phone: "555-0100", Email: "asha@example.com"}

	tests := []struct {
		name     string
		req      Request
		wantID   string
		wantName string
		wantErr  failure.Kind
	}{
		{
			name:     "walk-in",
			req:      Request{},
			wantName: DefaultWalkInName,
		},
		{
			name:     "selected existing",
			req:      Request{CustomerID: "001"},
			wantID:   "001",
			wantName: "Asha",
		},
		{
			name:    "selected missing",
			req:     Request{CustomerID: "042"},
			wantErr: failure.NotFound,
		},
		{
			name:     "inline matches by phone",
			req:      Request{Customer: customer.Details{Name: "Someone", Phone: " 555-0100 "}},
			wantID:   "001",
			wantName: "Asha",
		},
		{
			name:     "inline matches by email",
			req:      Request{Customer: customer.Details{Email: "asha@example.com"}},
			wantID:   "001",
			wantName: "Asha",
		},
		{
			name:     "inline creates new",
			req:      Request{Customer: customer.Details{Name: "Ravi", Phone: "555-0199"}, CustomerID: "001"},
			wantID:   "002",
			wantName: "Ravi",
		},
		{
			name:     "inline without name",
			req:      Request{Customer: customer.Details{Address: "12 Market St"}},
			wantID:   "002",
			wantName: DefaultWalkInName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProduct("001", 10, "5.00")
			s, store := newTestService(t, p)
			store.PutCustomer(existing)

			c := cart.New(pricing.Policy{})
			_, err := c.Add(p, 1, pricing.None)
			require.NoError(t, err)

			inv, err := s.Checkout(context.Background(), c, tt.req)
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 10, quantityOf(t, store, "001"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, inv.Customer.ID)
			assert.Equal(t, tt.wantName, inv.Customer.Name)

			row, err := store.Get(context.Background(), inv.Lines[0].SaleID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, row.CustomerName)
		})
	}
}

func TestService_CustomerRollbackOnFailedCheckout(t *testing.T) {
	p := newTestProduct("001", 1, "5.00")
	s, store := newTestService(t, p)

	c := cart.New(pricing.Policy{})
	_, err := c.Add(p, 1, pricing.None)
	require.NoError(t, err)

	adjustStock(t, store, "001", -1)

	_, err = s.Checkout(context.Background(), c, Request{Customer: customer.Details{Name: "Ravi", Phone: "555"}})
	assert.ErrorIs(t, err, failure.InsufficientStock)
	assert.Empty(t, store.Customers())
}

func TestService_ConcurrentCheckoutNeverOversells(t *testing.T) {
	p := newTestProduct("001", 10, "100.00")
	s, store := newTestService(t, p)

	const workers = 2
	var (
		wg   sync.WaitGroup
		errs = make([]error, workers)
	)
	for i := range workers {
		c := cart.New(pricing.Policy{})
		_, err := c.Add(p, 6, pricing.None)
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Checkout(context.Background(), c, Request{})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		kind := failure.KindOf(err)
		assert.Contains(t, []failure.Kind{failure.InsufficientStock, failure.Conflict}, kind)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, quantityOf(t, store, "001"))
}

type failingLedger struct {
	err error
}

func (f failingLedger) Atomic(context.Context, func(context.Context, ledger.Tx) error) error {
	return f.err
}

func TestService_CheckoutPropagatesConflict(t *testing.T) {
	s := NewService(failingLedger{err: &failure.ConflictError{Op: "checkout"}}, Config{WalkInName: "Guest"})

	c := cart.New(pricing.Policy{})
	_, err := c.Add(newTestProduct("001", 1, "1.00"), 1, pricing.None)
	require.NoError(t, err)

	_, err = s.Checkout(context.Background(), c, Request{})
	assert.ErrorIs(t, err, failure.Conflict)
	assert.False(t, c.Empty())
	assert.Equal(t, "Guest", s.walkIn)
}
