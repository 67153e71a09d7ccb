package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ledger"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/sale"
)

const (
	// Rows are locked in ID order so concurrent checkouts acquire
	// overlapping product locks in the same order.
	lockProductsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	adjustStockSQL = `UPDATE products SET quantity = quantity + $2 WHERE id = $1 AND quantity + $2 >= 0`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	insertSaleSQL = `INSERT INTO sales (invoice_no, product_id, product_name, category, quantity, retail_price,
			subtotal, discount_type, discount_value, effective_total, sale_date, sold_by, customer_name, customer_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	lockSaleSQL = `SELECT ` + saleColumns + ` FROM sales WHERE id = $1 AND product_id = $2 FOR UPDATE`

	refundedQuantitySQL = `SELECT COALESCE(SUM(quantity), 0) FROM returns WHERE sale_id = $1 AND product_id = $2`

	insertReturnSQL = `INSERT INTO returns (sale_id, product_id, quantity, refund_amount, return_date, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	customerColumns = `id, name, phone, email, address`

	findCustomerByContactSQL = `SELECT ` + customerColumns + ` FROM customers
		WHERE ($1 <> '' AND phone = $1) OR ($2 <> '' AND email = $2)
		ORDER BY id LIMIT 1`

	getCustomerSQL = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	insertCustomerSQL = `INSERT INTO customers (` + customerColumns + `) VALUES ($1, $2, $3, $4, $5)`
)

var (
	_ ledger.Ledger = (*Ledger)(nil)
	_ ledger.Tx     = (*pgTx)(nil)
)

// Ledger implements ledger.Ledger with read-committed transactions and
// explicit row locks.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger returns a Ledger that uses the given pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Atomic runs fn in a transaction. The transaction is rolled back when fn
// returns an error. Serialization failures, deadlocks and constraint guards
// are reported as failure.ConflictError.
func (l *Ledger) Atomic(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
	return asConflict("commit", err)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockProducts(ctx context.Context, ids []string) (map[string]product.Product, error) {
	rows, err := t.tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}
	out := make(map[string]product.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (t *pgTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	tag, err := t.tx.Exec(ctx, adjustStockSQL, productID, delta)
	if err != nil {
		return asConflict("adjust stock", errors.Wrapf(err, "adjust stock of %q", productID))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, productExistsSQL, productID).Scan(&exists); err != nil {
		return errors.Wrapf(err, "check product %q", productID)
	}
	if !exists {
		return failure.Missing("product", productID)
	}
	return &failure.ConflictError{
		Op:  "adjust stock",
		Err: errors.Errorf("product %s cannot change by %d", productID, delta),
	}
}

func (t *pgTx) InsertSale(ctx context.Context, s *sale.Sale) error {
	err := t.tx.QueryRow(ctx, insertSaleSQL,
		s.InvoiceNo, s.ProductID, s.ProductName, s.Category, s.Quantity, s.RetailPrice,
		s.Subtotal, string(s.Discount.Kind), s.Discount.Value, s.EffectiveTotal,
		s.Date, s.SoldBy, s.CustomerName, s.CustomerPhone,
	).Scan(&s.ID)
	if err != nil {
		return asConflict("insert sale", errors.Wrap(err, "insert sale"))
	}
	return nil
}

func (t *pgTx) LockSale(ctx context.Context, saleID int64, productID string) (*sale.Sale, error) {
	rows, err := t.tx.Query(ctx, lockSaleSQL, saleID, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "lock sale %d", saleID)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, failure.Missing("sale line", fmt.Sprintf("%d/%s", saleID, productID))
		}
		return nil, errors.Wrapf(err, "lock sale %d", saleID)
	}
	return &s, nil
}

func (t *pgTx) RefundedQuantity(ctx context.Context, saleID int64, productID string) (int, error) {
	var qty int
	if err := t.tx.QueryRow(ctx, refundedQuantitySQL, saleID, productID).Scan(&qty); err != nil {
		return 0, errors.Wrapf(err, "refunded quantity of sale %d", saleID)
	}
	return qty, nil
}

func (t *pgTx) InsertReturn(ctx context.Context, r *sale.Return) error {
	err := t.tx.QueryRow(ctx, insertReturnSQL,
		r.SaleID, r.ProductID, r.Quantity, r.Amount, r.Date, r.Reason,
	).Scan(&r.ID)
	if err != nil {
		return asConflict("insert return", errors.Wrap(err, "insert return"))
	}
	return nil
}

func (t *pgTx) FindCustomerByContact(ctx context.Context, phone, email string) (*customer.Customer, error) {
	rows, err := t.tx.Query(ctx, findCustomerByContactSQL, phone, email)
	if err != nil {
		return nil, errors.Wrap(err, "find customer")
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, failure.Missing("customer", phone+email)
		}
		return nil, errors.Wrap(err, "find customer")
	}
	return &c, nil
}

func (t *pgTx) GetCustomer(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := t.tx.Query(ctx, getCustomerSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %q", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, failure.Missing("customer", id)
		}
		return nil, errors.Wrapf(err, "get customer %q", id)
	}
	return &c, nil
}

func (t *pgTx) InsertCustomer(ctx context.Context, c *customer.Customer) error {
	_, err := t.tx.Exec(ctx, insertCustomerSQL, c.ID, c.Name, c.Phone, c.Email, c.Address)
	if err != nil {
		return asConflict("insert customer", errors.Wrapf(err, "insert customer %q", c.ID))
	}
	return nil
}

func (t *pgTx) NextID(ctx context.Context, entity string) (int64, error) {
	return nextValue(ctx, t.tx, entity)
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address)
	return c, err
}
