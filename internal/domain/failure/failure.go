// Package failure defines the error taxonomy shared by the cart, checkout and
// refund operations. Every typed error matches exactly one Kind via errors.Is,
// so callers can branch on the class of failure without knowing the concrete
// type.
package failure

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies a failure. Kinds are themselves errors so they can be used
// as errors.Is targets.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// Validation is malformed or missing required input.
	Validation Kind = "validation"
	// InsufficientStock is a requested quantity above what is on hand.
	InsufficientStock Kind = "insufficient_stock"
	// OverRefund is a refund that would push cumulative returns past the sold quantity.
	OverRefund Kind = "over_refund"
	// NotFound is a reference to an absent sale, product or customer.
	NotFound Kind = "not_found"
	// Conflict is a concurrent mutation detected at commit time.
	Conflict Kind = "conflict"
)

var kinds = []Kind{Validation, InsufficientStock, OverRefund, NotFound, Conflict}

// KindOf returns the Kind of err, or an empty Kind when err is not part of the
// taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ""
}

// ValidationError reports an invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == Validation }

// InsufficientStockError reports that Requested units of a product exceed the
// Available quantity.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductID
	if e.Name != "" {
		name = fmt.Sprintf("%s (%s)", e.ProductID, e.Name)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == InsufficientStock }

// OverRefundError reports a refund that exceeds the remaining refundable
// quantity of a (sale, product) pair.
type OverRefundError struct {
	SaleID          int64
	ProductID       string
	Requested       int
	AlreadyRefunded int
	Sold            int
}

func (e *OverRefundError) Error() string {
	return fmt.Sprintf("cannot refund %d of product %s on sale %d: already refunded %d of %d",
		e.Requested, e.ProductID, e.SaleID, e.AlreadyRefunded, e.Sold)
}

func (e *OverRefundError) Is(target error) bool { return target == OverRefund }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Missing returns a NotFoundError for the entity with the given id.
func Missing(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == NotFound }

// ConflictError reports that Op lost a race with a concurrent writer. Err is
// the underlying store error, if any.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: concurrent modification", e.Op)
	}
	return fmt.Sprintf("%s: concurrent modification: %v", e.Op, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == Conflict }
