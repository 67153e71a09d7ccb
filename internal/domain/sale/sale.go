// Package sale defines the immutable sale and return ledger rows.
package sale

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
)

// Sale is one committed cart line. Rows are never updated after insert.
type Sale struct {
	ID             int64
	InvoiceNo      string
	ProductID      string
	ProductName    string
	Category       string
	Quantity       int
	RetailPrice    decimal.Decimal
	Subtotal       decimal.Decimal
	Discount       pricing.Discount
	EffectiveTotal decimal.Decimal
	Date           time.Time
	SoldBy         string
	CustomerName   string
	CustomerPhone  string
}

// RefundAmount prices qty returned units at the sale's realized per-unit
// effective price, rounded to 2 decimal places.
func (s Sale) RefundAmount(qty int) decimal.Decimal {
	if s.Quantity <= 0 {
		return decimal.Zero
	}
	return s.EffectiveTotal.
		Mul(decimal.NewFromInt(int64(qty))).
		Div(decimal.NewFromInt(int64(s.Quantity))).
		Round(2)
}

// Return is a refund of some units of a sale line.
type Return struct {
	ID        int64
	SaleID    int64
	ProductID string
	Quantity  int
	Amount    decimal.Decimal
	Date      time.Time
	Reason    string
}

// Summary holds dashboard figures.
type Summary struct {
	TodayRevenue   decimal.Decimal
	MonthRevenue   decimal.Decimal
	MonthRefunded  decimal.Decimal
	Profit         decimal.Decimal
	InventoryValue decimal.Decimal
	LowStockCount  int
}

// DefaultRecentLimit is the number of sales returned by Recent when no
// limit is given.
const DefaultRecentLimit = 20

// Repository defines read access to the sales ledger. Get returns a
// failure.NotFoundError for an unknown sale.
type Repository interface {
	Recent(ctx context.Context, limit int) ([]Sale, error)
	Get(ctx context.Context, id int64) (*Sale, error)
	ListByInvoice(ctx context.Context, invoiceNo string) ([]Sale, error)
	RefundedQuantities(ctx context.Context, saleIDs []int64) (map[int64]int, error)
	Summary(ctx context.Context, now time.Time) (*Summary, error)
}

// ParseID parses a decimal sale identifier.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, failure.Invalid("sale_id", "must be a positive integer")
	}
	return id, nil
}
