// Package pricing computes tax-inclusive retail prices and discounted line
// totals. All amounts are rounded to 2 decimal places and never negative.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/posledger/internal/domain/failure"
)

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	// Flat subtracts the value as a currency amount.
	Flat DiscountKind = "Flat"
	// Percent subtracts the value as a percentage of the line subtotal.
	Percent DiscountKind = "Percent"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero

	// MaxTaxPercent is the upper bound of the tax rate.
	MaxTaxPercent = decimal.NewFromInt(40)
)

// Discount is a discount kind and value applied to a single line.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// None is a zero flat discount.
var None = Discount{Kind: Flat}

// Normalize maps an empty kind with zero value to None and rounds the value
// to 2 decimal places, the precision sale rows store.
func (d Discount) Normalize() Discount {
	if d.Kind == "" && d.Value.IsZero() {
		return None
	}
	if d.Value.Exponent() < -2 {
		d.Value = d.Value.Round(2)
	}
	return d
}

// Validate reports whether d is a known kind with a non-negative value.
// Percent values above 100 are rejected.
func (d Discount) Validate() error {
	switch d.Kind {
	case Flat:
	case Percent:
		if d.Value.GreaterThan(hundred) {
			return failure.Invalid("discount_value", "percent discount above 100")
		}
	default:
		return failure.Invalid("discount_kind", fmt.Sprintf("unknown discount kind %q", d.Kind))
	}
	if d.Value.IsNegative() {
		return failure.Invalid("discount_value", "must not be negative")
	}
	return nil
}

// String returns the invoice descriptor, "-" when no discount applies.
func (d Discount) String() string {
	if d.Value.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s %s", d.Kind, d.Value.String())
}

// Policy holds the configurable pricing rules.
type Policy struct {
	// CapFlatDiscount limits a Flat discount to the line subtotal. When false
	// the discount is taken as given and only the final total is floored.
	CapFlatDiscount bool
}

// ClampTax limits a tax percentage to [0, MaxTaxPercent].
func ClampTax(taxPercent decimal.Decimal) decimal.Decimal {
	if taxPercent.IsNegative() {
		return zero
	}
	return decimal.Min(taxPercent, MaxTaxPercent)
}

// RetailPrice returns unitPrice * (1 + tax/100) with tax clamped to
// [0, MaxTaxPercent], rounded to 2 decimal places.
func RetailPrice(unitPrice, taxPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(ClampTax(taxPercent).Div(hundred))
	return floorAtZero(unitPrice.Mul(factor)).Round(2)
}

// Subtotal returns price * quantity before any discount.
func Subtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// DiscountAmount returns the amount d removes from subtotal.
func (p Policy) DiscountAmount(subtotal decimal.Decimal, d Discount) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Kind {
	case Percent:
		amount = subtotal.Mul(d.Value).Div(hundred)
	default:
		amount = d.Value
		if p.CapFlatDiscount {
			amount = decimal.Min(amount, subtotal)
		}
	}
	return floorAtZero(amount)
}

// LineTotal returns max(price*quantity - discount, 0) rounded to 2 decimal
// places.
func (p Policy) LineTotal(price decimal.Decimal, quantity int, d Discount) decimal.Decimal {
	subtotal := Subtotal(price, quantity)
	return floorAtZero(subtotal.Sub(p.DiscountAmount(subtotal, d))).Round(2)
}

// DiscountAmount applies the default policy.
func DiscountAmount(subtotal decimal.Decimal, d Discount) decimal.Decimal {
	return Policy{}.DiscountAmount(subtotal, d)
}

// LineTotal applies the default policy.
func LineTotal(price decimal.Decimal, quantity int, d Discount) decimal.Decimal {
	return Policy{}.LineTotal(price, quantity, d)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
