// Package catalog bulk-loads product feeds.
//
// A feed is newline-delimited JSON, one product object per line, optionally
// gzip-compressed. Money fields may be JSON numbers or numeric strings.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/posledger/internal/domain/product"
)

// maxLineSize bounds a single feed record.
const maxLineSize = 1 << 20

// ParseLine decodes one feed record.
func ParseLine(line []byte) (product.Product, error) {
	var p product.Product
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "sku":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "supplier_id", "supplier":
			p.SupplierID, err = d.Str()
		case "quantity":
			p.Quantity, err = d.Int()
		case "unit_price":
			p.UnitPrice, err = decodeDecimal(d)
		case "tax_percent":
			p.TaxPercent, err = decodeDecimal(d)
		case "reorder_level":
			p.ReorderLevel, err = d.Int()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "parse product")
	}
	return p, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(string(n))
}

// Record is a parsed feed line. Err is set when the line could not be parsed.
type Record struct {
	Line    int
	Product product.Product
	Err     error
}

// ReadFeed calls fn for each non-blank line of r. Parse failures are passed
// to fn in Record.Err; an error returned by fn stops the scan.
func ReadFeed(ctx context.Context, r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		p, parseErr := ParseLine(raw)
		if err := fn(Record{Line: line, Product: p, Err: parseErr}); err != nil {
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "scan feed")
}

// OpenFeed opens path, transparently decompressing .gz files.
func OpenFeed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if filepath.Ext(path) != ".gz" {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}
