package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/domain/ident"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/pricing"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/sale"
	"github.com/xenking/posledger/internal/session"
	"github.com/xenking/posledger/internal/storage/memory"
	"github.com/xenking/posledger/internal/storage/postgres"
	"github.com/xenking/posledger/pkg/health"
)

// backend bundles the storage implementation chosen by configuration.
type backend struct {
	ledger   ledger.Ledger
	products product.Repository
	sales    sale.Repository
	ids      ident.Sequence
	ping     health.CheckFunc
	close    func()
}

// openBackend connects the configured ledger store and applies migrations.
func openBackend(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (*backend, error) {
	switch cfg.Driver {
	case DriverMemory:
		lg.Warn("Using in-memory storage, data is lost on restart")
		store := memory.New()
		return &backend{
			ledger:   store,
			products: store,
			sales:    store,
			ids:      store,
			ping:     store.Ping,
			close:    func() {},
		}, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return &backend{
			ledger:   postgres.NewLedger(pool),
			products: postgres.NewProductRepository(pool),
			sales:    postgres.NewSaleRepository(pool),
			ids:      postgres.NewSequence(pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// openSessions returns the Redis cart store when an address is configured and
// the in-memory store otherwise.
func openSessions(ctx context.Context, lg *zap.Logger, cfg *Config) (session.Store, func(), error) {
	policy := pricing.Policy{CapFlatDiscount: cfg.Pricing.CapFlatDiscount}
	if cfg.Redis.Addr == "" {
		return session.NewMemoryStore(policy, cfg.sessionTTL()), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping redis")
	}
	lg.Info("Cart sessions in Redis", zap.String("addr", cfg.Redis.Addr))
	return session.NewRedisStore(client, policy, cfg.sessionTTL()), func() {
		if err := client.Close(); err != nil {
			lg.Warn("Close redis", zap.Error(err))
		}
	}, nil
}
