package cart

import "github.com/xenking/posledger/internal/domain/pricing"

// Snapshot is the persisted form of a cart.
type Snapshot struct {
	Lines []Line
}

// Snapshot captures the current lines.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{Lines: c.Lines()}
}

// Restore rebuilds a cart from s. Line totals are recomputed with policy.
func Restore(policy pricing.Policy, s Snapshot) *Cart {
	c := New(policy)
	for _, l := range s.Lines {
		if l.Quantity < 1 || l.ProductID == "" {
			continue
		}
		l.Discount = l.Discount.Normalize()
		c.reprice(&l)
		c.lines = append(c.lines, l)
	}
	return c
}
