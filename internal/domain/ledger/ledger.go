// Package ledger defines the unit of work used by checkout and refunds.
//
// Every read-validate-write sequence that touches stock runs inside
// Ledger.Atomic. Rows obtained through the Lock methods stay locked until the
// callback returns, so a second unit of work touching the same product or
// sale line observes the first one's effect.
package ledger

import (
	"context"

	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/sale"
)

// Ledger runs units of work. Any error returned by fn rolls back every write
// made through tx, and Atomic returns that error.
type Ledger interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	// LockProducts returns the rows for ids and locks them. Missing IDs are
	// absent from the result.
	LockProducts(ctx context.Context, ids []string) (map[string]product.Product, error)
	// AdjustStock adds delta to the product quantity. A change that would
	// make the quantity negative is a failure.ConflictError.
	AdjustStock(ctx context.Context, productID string, delta int) error
	// InsertSale stores s and sets its ID.
	InsertSale(ctx context.Context, s *sale.Sale) error

	// LockSale returns the sale row matching both IDs and locks it.
	LockSale(ctx context.Context, saleID int64, productID string) (*sale.Sale, error)
	// RefundedQuantity sums the returned quantity for a sale line.
	RefundedQuantity(ctx context.Context, saleID int64, productID string) (int, error)
	// InsertReturn stores r and sets its ID.
	InsertReturn(ctx context.Context, r *sale.Return) error

	// FindCustomerByContact returns a customer whose phone or email matches.
	// Empty arguments never match.
	FindCustomerByContact(ctx context.Context, phone, email string) (*customer.Customer, error)
	GetCustomer(ctx context.Context, id string) (*customer.Customer, error)
	InsertCustomer(ctx context.Context, c *customer.Customer) error

	// NextID draws the next value of an entity counter. A value is never
	// handed out twice; it may be reused only if the unit of work rolls back.
	NextID(ctx context.Context, entity string) (int64, error)
}
