// Package session keeps in-progress carts between requests. Each cart
// belongs to exactly one session ID and is never shared.
package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
)

// DefaultTTL is how long an untouched cart is kept.
const DefaultTTL = 8 * time.Hour

// ErrCheckoutInProgress is wrapped in the failure.ConflictError returned for
// a session whose cart is being committed.
var ErrCheckoutInProgress = errors.New("checkout in progress")

// Store persists carts by session ID. Every method returns a
// failure.NotFoundError for unknown or expired sessions.
//
// A cart is claimed for the duration of a checkout. A claimed cart can still
// be read, but Update and Claim fail with a failure.ConflictError until the
// claim ends with Release or Complete.
type Store interface {
	Create(ctx context.Context) (string, error)
	Get(ctx context.Context, id string) (*cart.Cart, error)
	// Update loads the cart, applies fn and saves the result. Nothing is
	// saved when fn fails.
	Update(ctx context.Context, id string, fn func(c *cart.Cart) error) (*cart.Cart, error)
	// Claim marks the cart as checking out and returns it.
	Claim(ctx context.Context, id string) (*cart.Cart, error)
	// Release ends a claim and keeps the lines.
	Release(ctx context.Context, id string) error
	// Complete ends a claim and empties the cart.
	Complete(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// entry is the stored state of one session.
type entry struct {
	snapshot cart.Snapshot
	claimed  bool
}

func (e *entry) update(policy pricing.Policy, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	if e.claimed {
		return nil, inProgress("update cart")
	}
	c := cart.Restore(policy, e.snapshot)
	if err := fn(c); err != nil {
		return nil, err
	}
	e.snapshot = c.Snapshot()
	return c, nil
}

func (e *entry) claim(policy pricing.Policy) (*cart.Cart, error) {
	if e.claimed {
		return nil, inProgress("claim cart")
	}
	e.claimed = true
	return cart.Restore(policy, e.snapshot), nil
}

func (e *entry) release() { e.claimed = false }

func (e *entry) complete() {
	e.claimed = false
	e.snapshot = cart.Snapshot{}
}

func inProgress(op string) error {
	return &failure.ConflictError{Op: op, Err: ErrCheckoutInProgress}
}
