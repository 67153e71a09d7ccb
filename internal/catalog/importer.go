package catalog

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/product"
)

// Saver stores one validated product.
type Saver interface {
	Save(ctx context.Context, p product.Product) (*product.Product, error)
}

// Stats counts the outcome of an import.
type Stats struct {
	Read       int64
	Saved      int64
	Duplicates int64
	Rejected   int64
}

// Importer loads feeds concurrently, one goroutine per feed.
type Importer struct {
	saver Saver
	dedup *Dedup
}

// NewImporter creates an Importer. Products without a SKU are never
// de-duplicated; they get a generated SKU on save.
func NewImporter(saver Saver, dedup *Dedup) *Importer {
	return &Importer{saver: saver, dedup: dedup}
}

// Import reads every path. Unparseable lines, duplicates and products failing
// validation are counted and skipped; any other error aborts the import.
func (im *Importer) Import(ctx context.Context, paths []string) (Stats, error) {
	var (
		read, saved, dups, rejected atomic.Int64
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		g.Go(func() error {
			lg := zctx.From(ctx).With(zap.String("feed", path))
			rc, err := OpenFeed(path)
			if err != nil {
				return err
			}
			defer func() { _ = rc.Close() }()

			err = ReadFeed(ctx, rc, func(rec Record) error {
				read.Add(1)
				if rec.Err != nil {
					rejected.Add(1)
					lg.Warn("Skip line", zap.Int("line", rec.Line), zap.Error(rec.Err))
					return nil
				}
				p := rec.Product
				p.ID = strings.TrimSpace(p.ID)
				if p.ID != "" && !im.dedup.First(p.ID) {
					dups.Add(1)
					return nil
				}
				if _, err := im.saver.Save(ctx, p); err != nil {
					if errors.Is(err, failure.Validation) {
						rejected.Add(1)
						lg.Warn("Reject product", zap.Int("line", rec.Line), zap.String("sku", p.ID), zap.Error(err))
						return nil
					}
					return errors.Wrapf(err, "save line %d", rec.Line)
				}
				saved.Add(1)
				return nil
			})
			return errors.Wrap(err, path)
		})
	}
	err := g.Wait()
	return Stats{
		Read:       read.Load(),
		Saved:      saved.Load(),
		Duplicates: dups.Load(),
		Rejected:   rejected.Load(),
	}, err
}
