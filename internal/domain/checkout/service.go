package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ident"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/sale"
)

// Config tunes a Service.
type Config struct {
	// IDWidth is the zero-padding width of generated identifiers.
	IDWidth int
	// WalkInName replaces DefaultWalkInName when set.
	WalkInName string
}

// Service commits carts.
type Service struct {
	ledger ledger.Ledger
	width  int
	walkIn string
	now    func() time.Time
}

// NewService creates a checkout Service over l.
func NewService(l ledger.Ledger, cfg Config) *Service {
	if cfg.IDWidth <= 0 {
		cfg.IDWidth = ident.DefaultWidth
	}
	if cfg.WalkInName == "" {
		cfg.WalkInName = DefaultWalkInName
	}
	return &Service{
		ledger: l,
		width:  cfg.IDWidth,
		walkIn: cfg.WalkInName,
		now:    time.Now,
	}
}

// Checkout commits every line of c as one unit of work: each line's quantity
// is re-verified against the locked product row, a sale row is inserted and
// stock is decremented. Either all lines are committed or none are. The cart
// is cleared only after a successful commit.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart, req Request) (*Invoice, error) {
	if c == nil || c.Empty() {
		return nil, failure.Invalid("cart", "empty")
	}

	lines := c.Lines()
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	var inv *Invoice
	err := s.ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		cust, err := s.resolveCustomer(ctx, tx, req)
		if err != nil {
			return err
		}

		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "lock products")
		}
		if err := verifyStock(lines, products); err != nil {
			return err
		}

		seq, err := tx.NextID(ctx, ident.Invoice)
		if err != nil {
			return errors.Wrap(err, "next invoice number")
		}
		now := s.now()
		inv = &Invoice{
			Number:     fmt.Sprintf("INV%d-%s", now.Unix(), ident.Format(seq, s.width)),
			Date:       now,
			Customer:   *cust,
			SoldBy:     req.SoldBy,
			Lines:      make([]InvoiceLine, 0, len(lines)),
			Subtotal:   c.Subtotal(),
			GrandTotal: c.GrandTotal(),
		}

		for _, l := range lines {
			row := &sale.Sale{
				InvoiceNo:      inv.Number,
				ProductID:      l.ProductID,
				ProductName:    l.Name,
				Category:       l.Category,
				Quantity:       l.Quantity,
				RetailPrice:    l.RetailPrice,
				Subtotal:       l.Subtotal().Round(2),
				Discount:       l.Discount,
				EffectiveTotal: l.Total,
				Date:           now,
				SoldBy:         req.SoldBy,
				CustomerName:   cust.Name,
				CustomerPhone:  cust.Phone,
			}
			if err := tx.InsertSale(ctx, row); err != nil {
				return errors.Wrapf(err, "insert sale for product %s", l.ProductID)
			}
			if err := tx.AdjustStock(ctx, l.ProductID, -l.Quantity); err != nil {
				return errors.Wrapf(err, "decrement stock of product %s", l.ProductID)
			}
			inv.Lines = append(inv.Lines, InvoiceLine{
				SaleID:      row.ID,
				ProductID:   row.ProductID,
				Name:        row.ProductName,
				Category:    row.Category,
				Quantity:    row.Quantity,
				RetailPrice: row.RetailPrice,
				Discount:    row.Discount,
				Total:       row.EffectiveTotal,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Clear()

	zctx.From(ctx).Info("Checkout committed",
		zap.String("invoice", inv.Number),
		zap.Int("lines", len(inv.Lines)),
		zap.String("customer_id", inv.Customer.ID),
		zap.String("grand_total", inv.GrandTotal.StringFixed(2)),
	)
	return inv, nil
}

func verifyStock(lines []cart.Line, products map[string]product.Product) error {
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return failure.Missing("product", l.ProductID)
		}
		if l.Quantity > p.Quantity {
			return &failure.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: l.Quantity,
				Available: p.Quantity,
			}
		}
	}
	return nil
}

// resolveCustomer picks the customer for a checkout: inline details first
// (reusing a record that matches by phone or email), then the selected
// customer, then the walk-in placeholder.
func (s *Service) resolveCustomer(ctx context.Context, tx ledger.Tx, req Request) (*customer.Customer, error) {
	d := req.Customer.Trim()
	if !d.Empty() {
		if d.Phone != "" || d.Email != "" {
			existing, err := tx.FindCustomerByContact(ctx, d.Phone, d.Email)
			switch {
			case err == nil:
				return existing, nil
			case !errors.Is(err, failure.NotFound):
				return nil, errors.Wrap(err, "find customer")
			}
		}

		n, err := tx.NextID(ctx, ident.Customer)
		if err != nil {
			return nil, errors.Wrap(err, "next customer id")
		}
		c := &customer.Customer{
			ID:      ident.Format(n, s.width),
			Name:    d.Name,
			Phone:   d.Phone,
			Email:   d.Email,
			Address: d.Address,
		}
		if c.Name == "" {
			c.Name = s.walkIn
		}
		if err := tx.InsertCustomer(ctx, c); err != nil {
			return nil, errors.Wrap(err, "insert customer")
		}
		return c, nil
	}

	if id := req.CustomerID; id != "" {
		c, err := tx.GetCustomer(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "get customer")
		}
		return c, nil
	}

	return &customer.Customer{Name: s.walkIn}, nil
}
