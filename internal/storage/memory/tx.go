package memory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/sale"
)

var _ ledger.Tx = (*memTx)(nil)

// memTx runs with Store.mu held.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) LockProducts(_ context.Context, ids []string) (map[string]product.Product, error) {
	out := make(map[string]product.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) AdjustStock(_ context.Context, productID string, delta int) error {
	p, ok := t.s.products[productID]
	if !ok {
		return failure.Missing("product", productID)
	}
	if p.Quantity+delta < 0 {
		return &failure.ConflictError{
			Op:  "adjust stock",
			Err: errors.Errorf("product %s quantity %d cannot change by %d", productID, p.Quantity, delta),
		}
	}
	prev := p.Quantity
	p.Quantity += delta
	t.s.products[productID] = p
	t.undo = append(t.undo, func() {
		p := t.s.products[productID]
		p.Quantity = prev
		t.s.products[productID] = p
	})
	return nil
}

func (t *memTx) InsertSale(_ context.Context, s *sale.Sale) error {
	s.ID = int64(len(t.s.sales)) + 1
	t.s.sales = append(t.s.sales, *s)
	n := len(t.s.sales) - 1
	t.undo = append(t.undo, func() { t.s.sales = t.s.sales[:n] })
	return nil
}

func (t *memTx) LockSale(_ context.Context, saleID int64, productID string) (*sale.Sale, error) {
	if saleID < 1 || saleID > int64(len(t.s.sales)) {
		return nil, notFoundSale(saleID)
	}
	s := t.s.sales[saleID-1]
	if s.ProductID != productID {
		return nil, failure.Missing("sale line", fmt.Sprintf("%d/%s", saleID, productID))
	}
	return &s, nil
}

func (t *memTx) RefundedQuantity(_ context.Context, saleID int64, productID string) (int, error) {
	total := 0
	for _, r := range t.s.returns {
		if r.SaleID == saleID && r.ProductID == productID {
			total += r.Quantity
		}
	}
	return total, nil
}

func (t *memTx) InsertReturn(_ context.Context, r *sale.Return) error {
	r.ID = int64(len(t.s.returns)) + 1
	t.s.returns = append(t.s.returns, *r)
	n := len(t.s.returns) - 1
	t.undo = append(t.undo, func() { t.s.returns = t.s.returns[:n] })
	return nil
}

func (t *memTx) FindCustomerByContact(_ context.Context, phone, email string) (*customer.Customer, error) {
	for _, c := range t.s.customers {
		if (phone != "" && c.Phone == phone) || (email != "" && c.Email == email) {
			return &c, nil
		}
	}
	return nil, failure.Missing("customer", phone+email)
}

func (t *memTx) GetCustomer(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := t.s.customers[id]
	if !ok {
		return nil, failure.Missing("customer", id)
	}
	return &c, nil
}

func (t *memTx) InsertCustomer(_ context.Context, c *customer.Customer) error {
	if _, ok := t.s.customers[c.ID]; ok {
		return &failure.ConflictError{Op: "insert customer", Err: errors.Errorf("customer %s exists", c.ID)}
	}
	for _, other := range t.s.customers {
		if (c.Phone != "" && other.Phone == c.Phone) || (c.Email != "" && other.Email == c.Email) {
			return &failure.ConflictError{Op: "insert customer", Err: errors.Errorf("contact already used by customer %s", other.ID)}
		}
	}
	t.s.customers[c.ID] = *c
	id := c.ID
	t.undo = append(t.undo, func() { delete(t.s.customers, id) })
	return nil
}

func (t *memTx) NextID(_ context.Context, entity string) (int64, error) {
	return t.s.nextLocked(entity), nil
}
