// Package cart implements the per-session staging area of sale lines.
//
// A Cart is owned by exactly one session and is not safe for concurrent use.
// Its methods never write to the store; Add only reads the product quantity
// passed in to enforce the stock ceiling.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
	"github.com/xenking/posledger/internal/domain/product"
)

// Line is a staged product with its price snapshot and discount.
type Line struct {
	ProductID   string
	Name        string
	Category    string
	Quantity    int
	RetailPrice decimal.Decimal
	Discount    pricing.Discount
	Total       decimal.Decimal
}

// Subtotal returns quantity * retail price before discount.
func (l Line) Subtotal() decimal.Decimal {
	return pricing.Subtotal(l.RetailPrice, l.Quantity)
}

// Cart holds lines in insertion order.
type Cart struct {
	policy pricing.Policy
	lines  []Line
}

// New returns an empty cart priced with policy.
func New(policy pricing.Policy) *Cart {
	return &Cart{policy: policy}
}

// Add stages qty units of p. A product already in the cart is merged into its
// line: quantities are summed and the line keeps its original price snapshot
// and discount, so d is ignored. The resulting quantity must not exceed
// p.Quantity.
func (c *Cart) Add(p product.Product, qty int, d pricing.Discount) (Line, error) {
	if p.ID == "" {
		return Line{}, failure.Invalid("product_id", "required")
	}
	if qty < 1 {
		return Line{}, failure.Invalid("quantity", "must be at least 1")
	}
	if qty > product.MaxQuantity {
		return Line{}, failure.Invalid("quantity", "exceeds maximum")
	}

	idx := c.index(p.ID)
	existing := 0
	if idx >= 0 {
		existing = c.lines[idx].Quantity
	}
	if qty > p.Quantity-existing {
		return Line{}, &failure.InsufficientStockError{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: existing + qty,
			Available: p.Quantity,
		}
	}
	requested := existing + qty

	if idx >= 0 {
		l := &c.lines[idx]
		l.Quantity = requested
		c.reprice(l)
		return *l, nil
	}

	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return Line{}, err
	}
	l := Line{
		ProductID:   p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Quantity:    qty,
		RetailPrice: p.RetailPrice,
		Discount:    d,
	}
	c.reprice(&l)
	c.lines = append(c.lines, l)
	return l, nil
}

// RemoveOne takes one unit of productID out of the cart, dropping the line
// when its last unit is removed.
func (c *Cart) RemoveOne(productID string) error {
	idx := c.index(productID)
	if idx < 0 {
		return failure.Missing("cart line", productID)
	}
	if c.lines[idx].Quantity <= 1 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
		return nil
	}
	l := &c.lines[idx]
	l.Quantity--
	c.reprice(l)
	return nil
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.lines = nil
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Quantity returns the staged quantity of productID.
func (c *Cart) Quantity(productID string) int {
	if idx := c.index(productID); idx >= 0 {
		return c.lines[idx].Quantity
	}
	return 0
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Subtotal returns the sum of quantity * retail price over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum.Round(2)
}

// GrandTotal returns the sum of line totals.
func (c *Cart) GrandTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total)
	}
	return sum.Round(2)
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) reprice(l *Line) {
	l.Total = c.policy.LineTotal(l.RetailPrice, l.Quantity, l.Discount)
}
