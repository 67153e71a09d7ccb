package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	entry
	expires time.Time
}

// MemoryStore keeps carts in process memory. Expired entries are dropped on
// access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	policy  pricing.Policy
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore returns a MemoryStore whose carts are priced with policy.
func NewMemoryStore(policy pricing.Policy, ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		policy:  policy,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create opens an empty cart.
func (s *MemoryStore) Create(context.Context) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{expires: s.now().Add(s.ttl)}
	return id, nil
}

// Get returns a copy of the cart.
func (s *MemoryStore) Get(_ context.Context, id string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return cart.Restore(s.policy, e.snapshot), nil
}

// Update applies fn under the store lock.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	var c *cart.Cart
	err := s.modify(id, func(e *entry) error {
		var err error
		c, err = e.update(s.policy, fn)
		return err
	})
	return c, err
}

// Claim marks the cart as checking out.
func (s *MemoryStore) Claim(_ context.Context, id string) (*cart.Cart, error) {
	var c *cart.Cart
	err := s.modify(id, func(e *entry) error {
		var err error
		c, err = e.claim(s.policy)
		return err
	})
	return c, err
}

// Release ends a claim and keeps the lines.
func (s *MemoryStore) Release(_ context.Context, id string) error {
	return s.modify(id, func(e *entry) error {
		e.release()
		return nil
	})
}

// Complete ends a claim and empties the cart.
func (s *MemoryStore) Complete(_ context.Context, id string) error {
	return s.modify(id, func(e *entry) error {
		e.complete()
		return nil
	})
}

// modify applies fn to a copy of the entry and stores it when fn succeeds.
func (s *MemoryStore) modify(id string, fn func(e *entry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	me, err := s.load(id)
	if err != nil {
		return err
	}
	e := me.entry
	if err := fn(&e); err != nil {
		return err
	}
	s.entries[id] = memoryEntry{entry: e, expires: s.now().Add(s.ttl)}
	return nil
}

// Delete removes the session. Unknown IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) load(id string) (memoryEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return memoryEntry{}, failure.Missing("cart", id)
	}
	if s.now().After(e.expires) {
		delete(s.entries, id)
		return memoryEntry{}, failure.Missing("cart", id)
	}
	return e, nil
}
