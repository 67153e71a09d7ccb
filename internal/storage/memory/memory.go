// Package memory implements the catalog, sales ledger and identifier
// sequences in process memory.
//
// A single mutex serializes every unit of work, which gives the same
// isolation as row locks at the cost of concurrency. Writes inside Atomic are
// recorded in an undo log and replayed in reverse when the callback fails.
package memory

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ident"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/sale"
)

var (
	_ ledger.Ledger      = (*Store)(nil)
	_ product.Repository = (*Store)(nil)
	_ sale.Repository    = (*Store)(nil)
	_ ident.Sequence     = (*Store)(nil)
)

// Store is an in-memory ledger.
type Store struct {
	mu        sync.Mutex
	products  map[string]product.Product
	customers map[string]customer.Customer
	sales     []sale.Sale
	returns   []sale.Return
	counters  map[string]int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		products:  make(map[string]product.Product),
		customers: make(map[string]customer.Customer),
		counters:  make(map[string]int64),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Atomic runs fn with the store locked.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Next implements ident.Sequence.
func (s *Store) Next(_ context.Context, entity string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked(entity), nil
}

// nextLocked keeps each counter ahead of identifiers written directly, such
// as a product saved with an explicit SKU.
func (s *Store) nextLocked(entity string) int64 {
	var existing []string
	switch entity {
	case ident.Product:
		for id := range s.products {
			existing = append(existing, id)
		}
	case ident.Customer:
		for id := range s.customers {
			existing = append(existing, id)
		}
	}
	n := max(s.counters[entity], ident.Max(existing)) + 1
	s.counters[entity] = n
	return n
}

// PutCustomer stores c, replacing any customer with the same ID.
func (s *Store) PutCustomer(c customer.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// Customers returns every customer ordered by ID.
func (s *Store) Customers() []customer.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]customer.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b customer.Customer) int { return compareIDs(a.ID, b.ID) })
	return out
}

// Returns lists every return row in insertion order.
func (s *Store) Returns() []sale.Return {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.returns)
}

// compareIDs orders numeric identifiers numerically and the rest lexically.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func notFoundSale(id int64) error {
	return failure.Missing("sale", strconv.FormatInt(id, 10))
}
