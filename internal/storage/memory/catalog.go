package memory

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/sale"
)

// List returns all products ordered by ID.
func (s *Store) List(context.Context) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedProducts(func(product.Product) bool { return true }), nil
}

// GetByID returns a single product.
func (s *Store) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, failure.Missing("product", id)
	}
	return &p, nil
}

func (s *Store) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListLowStock returns products below their reorder level.
func (s *Store) ListLowStock(context.Context) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedProducts(product.Product.LowStock), nil
}

// Upsert inserts p or replaces its catalog fields, keeping the stock of an
// existing product.
func (s *Store) Upsert(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.products[p.ID]; ok {
		p.Quantity = existing.Quantity
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) sortedProducts(keep func(product.Product) bool) []product.Product {
	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b product.Product) int { return compareIDs(a.ID, b.ID) })
	return out
}

// Recent returns up to limit sales, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]sale.Sale, error) {
	if limit <= 0 {
		limit = sale.DefaultRecentLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sale.Sale, 0, min(limit, len(s.sales)))
	for i := len(s.sales) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.sales[i])
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (*sale.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || id > int64(len(s.sales)) {
		return nil, notFoundSale(id)
	}
	row := s.sales[id-1]
	return &row, nil
}

func (s *Store) ListByInvoice(_ context.Context, invoiceNo string) ([]sale.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sale.Sale
	for _, row := range s.sales {
		if row.InvoiceNo == invoiceNo {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) RefundedQuantities(_ context.Context, saleIDs []int64) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]int, len(saleIDs))
	for _, r := range s.returns {
		if slices.Contains(saleIDs, r.SaleID) {
			out[r.SaleID] += r.Quantity
		}
	}
	return out, nil
}

// Summary computes dashboard figures for the day and month of now.
func (s *Store) Summary(_ context.Context, now time.Time) (*sale.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	y, m, d := now.Date()
	sum := &sale.Summary{}
	for _, row := range s.sales {
		ry, rm, rd := row.Date.In(now.Location()).Date()
		if ry == y && rm == m {
			sum.MonthRevenue = sum.MonthRevenue.Add(row.EffectiveTotal)
			if rd == d {
				sum.TodayRevenue = sum.TodayRevenue.Add(row.EffectiveTotal)
			}
		}
		if p, ok := s.products[row.ProductID]; ok {
			cost := p.UnitPrice.Mul(decimal.NewFromInt(int64(row.Quantity)))
			sum.Profit = sum.Profit.Add(row.EffectiveTotal.Sub(cost))
		}
	}
	for _, r := range s.returns {
		ry, rm, _ := r.Date.In(now.Location()).Date()
		if ry == y && rm == m {
			sum.MonthRefunded = sum.MonthRefunded.Add(r.Amount)
		}
	}
	for _, p := range s.products {
		sum.InventoryValue = sum.InventoryValue.Add(p.RetailPrice.Mul(decimal.NewFromInt(int64(p.Quantity))))
		if p.LowStock() {
			sum.LowStockCount++
		}
	}

	sum.TodayRevenue = sum.TodayRevenue.Round(2)
	sum.MonthRevenue = sum.MonthRevenue.Round(2)
	sum.MonthRefunded = sum.MonthRefunded.Round(2)
	sum.Profit = sum.Profit.Round(2)
	sum.InventoryValue = sum.InventoryValue.Round(2)
	return sum, nil
}
