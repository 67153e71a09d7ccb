// Package checkout commits carts to the sales ledger.
package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/pricing"
)

// DefaultWalkInName is the customer name recorded for anonymous sales.
const DefaultWalkInName = "Walk-in"

// Request holds the customer selection and operator for a checkout. When any
// inline Customer field is set it takes precedence over CustomerID.
type Request struct {
	CustomerID string
	Customer   customer.Details
	SoldBy     string
}

// Invoice is the document data produced by a successful checkout.
type Invoice struct {
	Number     string
	Date       time.Time
	Customer   customer.Customer
	SoldBy     string
	Lines      []InvoiceLine
	Subtotal   decimal.Decimal
	GrandTotal decimal.Decimal
}

// InvoiceLine is one committed cart line.
type InvoiceLine struct {
	SaleID      int64
	ProductID   string
	Name        string
	Category    string
	Quantity    int
	RetailPrice decimal.Decimal
	Discount    pricing.Discount
	Total       decimal.Decimal
}
