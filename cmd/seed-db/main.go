package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/catalog"
	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ident"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/storage/postgres"
)

// demoCustomer is a regular customer selectable at checkout.
var demoCustomer = customer.Details{
	Name:    "Demo Customer",
	Phone:   "555-0100",
	Email:   "demo@example.com",
	Address: "1 Market Street",
}

func main() {
	var (
		databaseURL  string
		productsFile string
		width        int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.ndjson", "path to products NDJSON file (.gz allowed)")
	flag.IntVar(&width, "id-width", ident.DefaultWidth, "zero-padding width for generated identifiers")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, lg, databaseURL, productsFile, width); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}

	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile string, width int) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := product.NewService(postgres.NewProductRepository(pool), postgres.NewSequence(pool), width)
	stats, err := catalog.NewImporter(products, catalog.NewDedup(1024, 0.001)).Import(ctx, []string{productsFile})
	if err != nil {
		return errors.Wrap(err, "seed products")
	}
	lg.Info("Seeded products",
		zap.String("path", productsFile),
		zap.Int64("saved", stats.Saved),
		zap.Int64("rejected", stats.Rejected),
	)

	c, err := seedCustomer(ctx, postgres.NewLedger(pool), width)
	if err != nil {
		return errors.Wrap(err, "seed customer")
	}
	lg.Info("Seeded customer", zap.String("id", c.ID), zap.String("name", c.Name))

	return nil
}

// seedCustomer inserts demoCustomer unless a customer with the same phone or
// email already exists.
func seedCustomer(ctx context.Context, l ledger.Ledger, width int) (*customer.Customer, error) {
	var out *customer.Customer
	err := l.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		existing, err := tx.FindCustomerByContact(ctx, demoCustomer.Phone, demoCustomer.Email)
		switch {
		case err == nil:
			out = existing
			return nil
		case !errors.Is(err, failure.NotFound):
			return errors.Wrap(err, "find customer")
		}

		n, err := tx.NextID(ctx, ident.Customer)
		if err != nil {
			return errors.Wrap(err, "next customer id")
		}
		c := &customer.Customer{
			ID:      ident.Format(n, width),
			Name:    demoCustomer.Name,
			Phone:   demoCustomer.Phone,
			Email:   demoCustomer.Email,
			Address: demoCustomer.Address,
		}
		if err := tx.InsertCustomer(ctx, c); err != nil {
			return errors.Wrap(err, "insert customer")
		}
		out = c
		return nil
	})
	return out, err
}
