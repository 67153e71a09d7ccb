package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/catalog"
	"github.com/xenking/posledger/internal/domain/ident"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		expected    uint
		fpr         float64
		width       int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.ndjson and *.ndjson.gz supplier feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of distinct SKUs across all feeds")
	flag.Float64Var(&fpr, "fpr", 0.001, "bloom filter false-positive rate")
	flag.IntVar(&width, "id-width", ident.DefaultWidth, "zero-padding width for generated SKUs")
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

	paths := flag.Args()
	if len(paths) == 0 {
		paths, err = feedFiles(dataDir)
		if err != nil {
			lg.Fatal("List feeds", zap.Error(err))
		}
	}
	if len(paths) == 0 {
		lg.Fatal("No feeds found", zap.String("dir", dataDir))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, lg, databaseURL, paths, catalog.NewDedup(expected, fpr), width); err != nil {
		lg.Fatal("Import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, paths []string, dedup *catalog.Dedup, width int) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := product.NewService(postgres.NewProductRepository(pool), postgres.NewSequence(pool), width)

	start := time.Now()
	lg.Info("Importing feeds", zap.Strings("paths", paths))
	stats, err := catalog.NewImporter(products, dedup).Import(ctx, paths)
	if err != nil {
		return errors.Wrap(err, "import")
	}

	lg.Info("Import completed",
		zap.Int64("read", stats.Read),
		zap.Int64("saved", stats.Saved),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("rejected", stats.Rejected),
		zap.Int("bloom_false_positives", dedup.FalsePositives()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// feedFiles returns the supplier feeds in dir in name order.
func feedFiles(dir string) ([]string, error) {
	var out []string
	for _, pattern := range []string{"*.ndjson", "*.ndjson.gz"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, errors.Wrap(err, "glob")
		}
		out = append(out, m...)
	}
	sort.Strings(out)
	return out, nil
}
