package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/product"
)

const productColumns = `id, name, category, supplier_id, quantity, unit_price, tax_percent, retail_price, reorder_level`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	listLowStockSQL = `SELECT ` + productColumns + ` FROM products WHERE quantity < reorder_level ORDER BY id`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			supplier_id = EXCLUDED.supplier_id,
			unit_price = EXCLUDED.unit_price,
			tax_percent = EXCLUDED.tax_percent,
			retail_price = EXCLUDED.retail_price,
			reorder_level = EXCLUDED.reorder_level
		RETURNING quantity`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, failure.Missing("product", id)
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListLowStock returns products whose quantity is below the reorder level.
func (r *ProductRepository) ListLowStock(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listLowStockSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list low stock")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert inserts p or updates the catalog fields of the row with the same ID.
// An existing row keeps its quantity, which is copied back into p.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, upsertProductSQL,
		p.ID, p.Name, p.Category, p.SupplierID, p.Quantity,
		p.UnitPrice, p.TaxPercent, p.RetailPrice, p.ReorderLevel,
	).Scan(&p.Quantity)
	if err != nil {
		return asConflict("upsert product", errors.Wrapf(err, "upsert product %q", p.ID))
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.SupplierID, &p.Quantity,
		&p.UnitPrice, &p.TaxPercent, &p.RetailPrice, &p.ReorderLevel,
	)
	return p, err
}
