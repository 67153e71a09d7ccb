// Package stock applies manual stock corrections such as deliveries and
// write-offs. It is the only way to change the quantity of an existing
// product outside checkout and refunds.
package stock

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/product"
)

// Service adjusts stock inside a ledger unit of work.
type Service struct {
	ledger ledger.Ledger
}

// NewService creates a stock Service.
func NewService(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// Adjust adds delta to the stock of productID under a row lock and returns
// the updated product. A negative delta larger than the stock on hand is an
// InsufficientStockError.
func (s *Service) Adjust(ctx context.Context, productID string, delta int) (*product.Product, error) {
	productID = strings.TrimSpace(productID)
	switch {
	case productID == "":
		return nil, failure.Invalid("product_id", "required")
	case delta == 0:
		return nil, failure.Invalid("delta", "must not be zero")
	case delta > product.MaxQuantity || delta < -product.MaxQuantity:
		return nil, failure.Invalid("delta", "out of range")
	}

	var out product.Product
	err := s.ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		locked, err := tx.LockProducts(ctx, []string{productID})
		if err != nil {
			return errors.Wrap(err, "lock product")
		}
		p, ok := locked[productID]
		if !ok {
			return failure.Missing("product", productID)
		}
		if delta < 0 && -delta > p.Quantity {
			return &failure.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: -delta,
				Available: p.Quantity,
			}
		}
		if delta > 0 && p.Quantity > product.MaxQuantity-delta {
			return failure.Invalid("delta", "stock would exceed maximum")
		}
		if err := tx.AdjustStock(ctx, productID, delta); err != nil {
			return errors.Wrap(err, "adjust stock")
		}
		p.Quantity += delta
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Stock adjusted",
		zap.String("product_id", out.ID),
		zap.Int("delta", delta),
		zap.Int("quantity", out.Quantity),
	)
	return &out, nil
}
