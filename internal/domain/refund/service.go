// Package refund records partial and full returns against sale lines.
package refund

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/sale"
)

// Request identifies the sale line and the units being returned.
type Request struct {
	SaleID    int64
	ProductID string
	Quantity  int
	Reason    string
}

// Line is a sale line with its refund position.
type Line struct {
	Sale      sale.Sale
	Refunded  int
	Remaining int
}

// Service processes refunds.
type Service struct {
	ledger ledger.Ledger
	sales  sale.Repository
	now    func() time.Time
}

// NewService creates a refund Service.
func NewService(l ledger.Ledger, sales sale.Repository) *Service {
	return &Service{ledger: l, sales: sales, now: time.Now}
}

// Refund validates req and, in one unit of work, records a return and
// re-credits stock. Cumulative refunds for a sale line never exceed the sold
// quantity. Each unit is refunded at the sale's effective per-unit price.
func (s *Service) Refund(ctx context.Context, req Request) (*sale.Return, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	req.ProductID = strings.TrimSpace(req.ProductID)
	switch {
	case req.Reason == "":
		return nil, failure.Invalid("reason", "required")
	case req.Quantity <= 0:
		return nil, failure.Invalid("quantity", "must be greater than 0")
	case req.SaleID <= 0:
		return nil, failure.Invalid("sale_id", "required")
	case req.ProductID == "":
		return nil, failure.Invalid("product_id", "required")
	}

	var ret *sale.Return
	err := s.ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		sl, err := tx.LockSale(ctx, req.SaleID, req.ProductID)
		if err != nil {
			return errors.Wrap(err, "lock sale")
		}

		already, err := tx.RefundedQuantity(ctx, sl.ID, sl.ProductID)
		if err != nil {
			return errors.Wrap(err, "refunded quantity")
		}
		if req.Quantity > sl.Quantity-already {
			return &failure.OverRefundError{
				SaleID:          sl.ID,
				ProductID:       sl.ProductID,
				Requested:       req.Quantity,
				AlreadyRefunded: already,
				Sold:            sl.Quantity,
			}
		}

		products, err := tx.LockProducts(ctx, []string{sl.ProductID})
		if err != nil {
			return errors.Wrap(err, "lock product")
		}
		if _, ok := products[sl.ProductID]; !ok {
			return failure.Missing("product", sl.ProductID)
		}

		ret = &sale.Return{
			SaleID:    sl.ID,
			ProductID: sl.ProductID,
			Quantity:  req.Quantity,
			Amount:    sl.RefundAmount(req.Quantity),
			Date:      s.now(),
			Reason:    req.Reason,
		}
		if err := tx.InsertReturn(ctx, ret); err != nil {
			return errors.Wrap(err, "insert return")
		}
		if err := tx.AdjustStock(ctx, sl.ProductID, req.Quantity); err != nil {
			return errors.Wrap(err, "re-credit stock")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Refund recorded",
		zap.Int64("sale_id", ret.SaleID),
		zap.String("product_id", ret.ProductID),
		zap.Int("quantity", ret.Quantity),
		zap.String("amount", ret.Amount.StringFixed(2)),
	)
	return ret, nil
}

// Refundable returns every line of the invoice that saleID belongs to, with
// the quantity already refunded and still refundable.
func (s *Service) Refundable(ctx context.Context, saleID int64) ([]Line, error) {
	if saleID <= 0 {
		return nil, failure.Invalid("sale_id", "required")
	}
	sl, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, errors.Wrap(err, "get sale")
	}

	rows := []sale.Sale{*sl}
	if sl.InvoiceNo != "" {
		rows, err = s.sales.ListByInvoice(ctx, sl.InvoiceNo)
		if err != nil {
			return nil, errors.Wrapf(err, "list invoice %s", sl.InvoiceNo)
		}
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	refunded, err := s.sales.RefundedQuantities(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "refunded quantities")
	}

	out := make([]Line, len(rows))
	for i, r := range rows {
		done := refunded[r.ID]
		out[i] = Line{Sale: r, Refunded: done, Remaining: max(r.Quantity-done, 0)}
	}
	return out, nil
}
