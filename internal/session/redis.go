package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
)

const (
	keyPrefix = "posledger:cart:"

	// maxUpdateAttempts bounds optimistic retries when another request for
	// the same session writes between WATCH and EXEC.
	maxUpdateAttempts = 5
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps carts in Redis so they survive a restart of the server.
type RedisStore struct {
	client redis.UniversalClient
	policy pricing.Policy
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore over client.
func NewRedisStore(client redis.UniversalClient, policy pricing.Policy, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, policy: policy, ttl: ttl}
}

func key(id string) string { return keyPrefix + id }

// Create opens an empty cart.
func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.client.Set(ctx, key(id), encodeEntry(entry{}), s.ttl).Err(); err != nil {
		return "", errors.Wrap(err, "create cart session")
	}
	return id, nil
}

// Get loads the cart for id.
func (s *RedisStore) Get(ctx context.Context, id string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, failure.Missing("cart", id)
		}
		return nil, errors.Wrapf(err, "get cart %s", id)
	}
	en, err := decodeEntry(data)
	if err != nil {
		return nil, err
	}
	return cart.Restore(s.policy, en.snapshot), nil
}

// Update applies fn inside a WATCH transaction and retries when the key
// changes concurrently.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	var c *cart.Cart
	err := s.modify(ctx, id, "update cart", func(e *entry) error {
		var err error
		c, err = e.update(s.policy, fn)
		return err
	})
	return c, err
}

// Claim marks the cart as checking out. Of two concurrent claims only the
// first EXEC succeeds; the retry of the second sees the claim.
func (s *RedisStore) Claim(ctx context.Context, id string) (*cart.Cart, error) {
	var c *cart.Cart
	err := s.modify(ctx, id, "claim cart", func(e *entry) error {
		var err error
		c, err = e.claim(s.policy)
		return err
	})
	return c, err
}

// Release ends a claim and keeps the lines.
func (s *RedisStore) Release(ctx context.Context, id string) error {
	return s.modify(ctx, id, "release cart", func(e *entry) error {
		e.release()
		return nil
	})
}

// Complete ends a claim and empties the cart.
func (s *RedisStore) Complete(ctx context.Context, id string) error {
	return s.modify(ctx, id, "complete cart", func(e *entry) error {
		e.complete()
		return nil
	})
}

// modify runs fn on the stored entry inside a WATCH transaction. Nothing is
// written when fn fails.
func (s *RedisStore) modify(ctx context.Context, id, op string, fn func(e *entry) error) error {
	k := key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return failure.Missing("cart", id)
			}
			return errors.Wrapf(err, "get cart %s", id)
		}
		en, err := decodeEntry(data)
		if err != nil {
			return err
		}
		if err := fn(&en); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, encodeEntry(en), s.ttl)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return &failure.ConflictError{Op: op, Err: redis.TxFailedErr}
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return errors.Wrapf(err, "delete cart %s", id)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
