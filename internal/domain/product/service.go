package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ident"
	"github.com/xenking/posledger/internal/domain/pricing"
)

// Service maintains the catalog.
type Service struct {
	repo  Repository
	ids   ident.Sequence
	width int
}

// NewService creates a catalog Service. New SKUs are drawn from ids and
// padded to width digits.
func NewService(repo Repository, ids ident.Sequence, width int) *Service {
	return &Service{repo: repo, ids: ids, width: width}
}

// List returns every product ordered by ID.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// LowStock returns products whose quantity is below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

// Save validates p, recomputes its retail price and upserts it. An empty ID
// is replaced with the next padded SKU. p.Quantity is the opening stock of a
// new product; the stock of an existing product is left as the ledger has it.
func (s *Service) Save(ctx context.Context, p Product) (*Product, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.SupplierID = strings.TrimSpace(p.SupplierID)

	if err := validate(p); err != nil {
		return nil, err
	}

	p.TaxPercent = pricing.ClampTax(p.TaxPercent)
	p.UnitPrice = p.UnitPrice.Round(2)
	p.RetailPrice = pricing.RetailPrice(p.UnitPrice, p.TaxPercent)

	if p.ID == "" {
		n, err := s.ids.Next(ctx, ident.Product)
		if err != nil {
			return nil, errors.Wrap(err, "next product id")
		}
		p.ID = ident.Format(n, s.width)
	}

	if err := s.repo.Upsert(ctx, &p); err != nil {
		return nil, errors.Wrapf(err, "upsert product %s", p.ID)
	}

	zctx.From(ctx).Info("Product saved",
		zap.String("product_id", p.ID),
		zap.Int("quantity", p.Quantity),
		zap.String("retail_price", p.RetailPrice.StringFixed(2)),
	)
	return &p, nil
}

func validate(p Product) error {
	switch {
	case p.Name == "":
		return failure.Invalid("name", "required")
	case p.Category == "":
		return failure.Invalid("category", "required")
	case p.SupplierID == "":
		return failure.Invalid("supplier_id", "required")
	case p.Quantity < 0:
		return failure.Invalid("quantity", "must not be negative")
	case p.Quantity > MaxQuantity:
		return failure.Invalid("quantity", "exceeds maximum")
	case p.UnitPrice.IsNegative():
		return failure.Invalid("unit_price", "must not be negative")
	case p.ReorderLevel < 0:
		return failure.Invalid("reorder_level", "must not be negative")
	}
	return nil
}
