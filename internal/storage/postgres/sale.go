package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
	"github.com/xenking/posledger/internal/domain/sale"
)

const saleColumns = `id, invoice_no, product_id, product_name, category, quantity, retail_price, subtotal,
	discount_type, discount_value, effective_total, sale_date, sold_by, customer_name, customer_phone`

const (
	recentSalesSQL = `SELECT ` + saleColumns + ` FROM sales ORDER BY id DESC LIMIT $1`

	getSaleSQL = `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`

	listSalesByInvoiceSQL = `SELECT ` + saleColumns + ` FROM sales WHERE invoice_no = $1 ORDER BY id`

	refundedQuantitiesSQL = `SELECT sale_id, SUM(quantity) FROM returns WHERE sale_id = ANY($1) GROUP BY sale_id`

	revenueSQL = `SELECT
			COALESCE(SUM(effective_total) FILTER (WHERE sale_date >= $1 AND sale_date < $2), 0),
			COALESCE(SUM(effective_total) FILTER (WHERE sale_date >= $3 AND sale_date < $4), 0)
		FROM sales`

	refundedSQL = `SELECT COALESCE(SUM(refund_amount), 0) FROM returns WHERE return_date >= $1 AND return_date < $2`

	profitSQL = `SELECT COALESCE(SUM(s.effective_total - p.unit_price * s.quantity), 0)
		FROM sales s JOIN products p ON p.id = s.product_id`

	inventorySQL = `SELECT COALESCE(SUM(quantity * retail_price), 0), COUNT(*) FILTER (WHERE quantity < reorder_level)
		FROM products`
)

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// Recent returns up to limit sales, newest first.
func (r *SaleRepository) Recent(ctx context.Context, limit int) ([]sale.Sale, error) {
	if limit <= 0 {
		limit = sale.DefaultRecentLimit
	}
	rows, err := r.pool.Query(ctx, recentSalesSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "recent sales")
	}
	return pgx.CollectRows(rows, scanSale)
}

// Get returns a single sale row.
func (r *SaleRepository) Get(ctx context.Context, id int64) (*sale.Sale, error) {
	rows, err := r.pool.Query(ctx, getSaleSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get sale %d", id)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, failure.Missing("sale", strconv.FormatInt(id, 10))
		}
		return nil, errors.Wrapf(err, "get sale %d", id)
	}
	return &s, nil
}

// ListByInvoice returns the rows committed by one checkout.
func (r *SaleRepository) ListByInvoice(ctx context.Context, invoiceNo string) ([]sale.Sale, error) {
	rows, err := r.pool.Query(ctx, listSalesByInvoiceSQL, invoiceNo)
	if err != nil {
		return nil, errors.Wrapf(err, "list invoice %q", invoiceNo)
	}
	return pgx.CollectRows(rows, scanSale)
}

// RefundedQuantities sums returned units per sale row.
func (r *SaleRepository) RefundedQuantities(ctx context.Context, saleIDs []int64) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, refundedQuantitiesSQL, saleIDs)
	if err != nil {
		return nil, errors.Wrap(err, "refunded quantities")
	}
	defer rows.Close()

	out := make(map[int64]int, len(saleIDs))
	for rows.Next() {
		var (
			id  int64
			qty int
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, errors.Wrap(err, "scan refunded quantity")
		}
		out[id] = qty
	}
	return out, rows.Err()
}

// Summary computes dashboard figures for the day and month of now in a
// single batch round trip.
func (r *SaleRepository) Summary(ctx context.Context, now time.Time) (*sale.Summary, error) {
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	batch := &pgx.Batch{}
	batch.Queue(revenueSQL, dayStart, dayStart.AddDate(0, 0, 1), monthStart, monthEnd)
	batch.Queue(refundedSQL, monthStart, monthEnd)
	batch.Queue(profitSQL)
	batch.Queue(inventorySQL)

	br := r.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	var sum sale.Summary
	if err := br.QueryRow().Scan(&sum.TodayRevenue, &sum.MonthRevenue); err != nil {
		return nil, errors.Wrap(err, "revenue")
	}
	if err := br.QueryRow().Scan(&sum.MonthRefunded); err != nil {
		return nil, errors.Wrap(err, "refunded")
	}
	if err := br.QueryRow().Scan(&sum.Profit); err != nil {
		return nil, errors.Wrap(err, "profit")
	}
	if err := br.QueryRow().Scan(&sum.InventoryValue, &sum.LowStockCount); err != nil {
		return nil, errors.Wrap(err, "inventory")
	}

	sum.TodayRevenue = sum.TodayRevenue.Round(2)
	sum.MonthRevenue = sum.MonthRevenue.Round(2)
	sum.MonthRefunded = sum.MonthRefunded.Round(2)
	sum.Profit = sum.Profit.Round(2)
	sum.InventoryValue = sum.InventoryValue.Round(2)
	return &sum, nil
}

func scanSale(row pgx.CollectableRow) (sale.Sale, error) {
	var (
		s    sale.Sale
		kind string
	)
	err := row.Scan(
		&s.ID, &s.InvoiceNo, &s.ProductID, &s.ProductName, &s.Category, &s.Quantity,
		&s.RetailPrice, &s.Subtotal, &kind, &s.Discount.Value, &s.EffectiveTotal,
		&s.Date, &s.SoldBy, &s.CustomerName, &s.CustomerPhone,
	)
	s.Discount.Kind = pricing.DiscountKind(kind)
	return s, err
}
