package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// MaxQuantity bounds any single stock or line quantity.
const MaxQuantity = 1_000_000

// Product is a stocked catalog item. Quantity is only ever changed through a
// ledger unit of work.
type Product struct {
	ID           string
	Name         string
	Category     string
	SupplierID   string
	Quantity     int
	UnitPrice    decimal.Decimal
	TaxPercent   decimal.Decimal
	RetailPrice  decimal.Decimal
	ReorderLevel int
}

// LowStock reports whether the quantity on hand is below the reorder level.
func (p Product) LowStock() bool {
	return p.Quantity < p.ReorderLevel
}

// Repository defines catalog persistence operations. GetByID returns a
// failure.NotFoundError for unknown IDs.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	ListLowStock(ctx context.Context) ([]Product, error)
	// Upsert inserts p or updates its catalog fields. The quantity is only
	// written on insert; p.Quantity is set to the stored stock on return.
	Upsert(ctx context.Context, p *Product) error
}
