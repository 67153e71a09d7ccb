package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/checkout"
	"github.com/xenking/posledger/internal/domain/customer"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/refund"
	"github.com/xenking/posledger/internal/domain/sale"
)

// writeJSON sends the document built by fn with the given status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// readBody decodes the request body object, handing each key to fn.
func readBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return failure.Invalid("body", "required")
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		var vErr *failure.ValidationError
		if errors.As(err, &vErr) {
			return err
		}
		return failure.Invalid("body", err.Error())
	}
	return nil
}

// decodeQuantity reads an integer count bounded by product.MaxQuantity in
// magnitude. The sign is left to the domain checks.
func decodeQuantity(d *jx.Decoder, field string) (int, error) {
	n, err := d.Int()
	if err != nil {
		return 0, failure.Invalid(field, "not an integer")
	}
	if n > product.MaxQuantity || n < -product.MaxQuantity {
		return 0, failure.Invalid(field, "out of range")
	}
	return n, nil
}

// money renders an amount with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, failure.Invalid(field, "not a number")
	}
	return v, nil
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("supplier_id", func(e *jx.Encoder) { e.Str(p.SupplierID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(p.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { money(e, p.UnitPrice) })
		e.Field("tax_percent", func(e *jx.Encoder) { e.Num(jx.Num(p.TaxPercent.String())) })
		e.Field("retail_price", func(e *jx.Encoder) { money(e, p.RetailPrice) })
		e.Field("reorder_level", func(e *jx.Encoder) { e.Int(p.ReorderLevel) })
		e.Field("low_stock", func(e *jx.Encoder) { e.Bool(p.LowStock()) })
	})
}

func encodeProducts(e *jx.Encoder, ps []product.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range ps {
			encodeProduct(e, p)
		}
	})
}

func decodeProduct(r *http.Request) (product.Product, error) {
	var p product.Product
	err := readBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "supplier_id":
			p.SupplierID, err = d.Str()
		case "quantity":
			p.Quantity, err = decodeQuantity(d, key)
		case "unit_price":
			p.UnitPrice, err = decodeDecimal(d, key)
		case "tax_percent":
			p.TaxPercent, err = decodeDecimal(d, key)
		case "reorder_level":
			p.ReorderLevel, err = decodeQuantity(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodeStockDelta(r *http.Request) (int, error) {
	var delta int
	err := readBody(r, func(d *jx.Decoder, key string) error {
		if key != "delta" {
			return d.Skip()
		}
		var err error
		delta, err = decodeQuantity(d, key)
		return err
	})
	return delta, err
}

func encodeDiscount(e *jx.Encoder, d pricing.Discount) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(d.Kind)) })
		e.Field("value", func(e *jx.Encoder) { e.Num(jx.Num(d.Value.String())) })
	})
}

func decodeDiscount(d *jx.Decoder) (pricing.Discount, error) {
	var out pricing.Discount
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "kind":
			var kind string
			kind, err = d.Str()
			out.Kind = pricing.DiscountKind(kind)
		case "value":
			out.Value, err = decodeDecimal(d, "discount")
		default:
			err = d.Skip()
		}
		return err
	})
	return out, err
}

func encodeCart(e *jx.Encoder, id string, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(id) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range c.Lines() {
					encodeCartLine(e, l)
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, c.Subtotal()) })
		e.Field("grand_total", func(e *jx.Encoder) { money(e, c.GrandTotal()) })
	})
}

func encodeCartLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(l.Category) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("retail_price", func(e *jx.Encoder) { money(e, l.RetailPrice) })
		e.Field("discount", func(e *jx.Encoder) { encodeDiscount(e, l.Discount) })
		e.Field("total", func(e *jx.Encoder) { money(e, l.Total) })
	})
}

// addLineRequest is the body of POST /api/cart/{id}/lines.
type addLineRequest struct {
	ProductID string
	Quantity  int
	Discount  pricing.Discount
}

func decodeAddLine(r *http.Request) (addLineRequest, error) {
	req := addLineRequest{Discount: pricing.None}
	err := readBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = decodeQuantity(d, key)
		case "discount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.Discount, err = decodeDiscount(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeCheckout(r *http.Request) (checkout.Request, error) {
	var req checkout.Request
	if r.ContentLength == 0 {
		return req, nil
	}
	err := readBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customer_id":
			req.CustomerID, err = d.Str()
		case "sold_by":
			req.SoldBy, err = d.Str()
		case "customer":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.Customer, err = decodeCustomerDetails(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeCustomerDetails(d *jx.Decoder) (customer.Details, error) {
	var out customer.Details
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			out.Name, err = d.Str()
		case "phone":
			out.Phone, err = d.Str()
		case "email":
			out.Email, err = d.Str()
		case "address":
			out.Address, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return out, err
}

func encodeCustomer(e *jx.Encoder, c customer.Customer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(c.Phone) })
		e.Field("email", func(e *jx.Encoder) { e.Str(c.Email) })
		e.Field("address", func(e *jx.Encoder) { e.Str(c.Address) })
	})
}

func encodeInvoice(e *jx.Encoder, inv *checkout.Invoice) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("number", func(e *jx.Encoder) { e.Str(inv.Number) })
		e.Field("date", func(e *jx.Encoder) { e.Str(inv.Date.Format(time.RFC3339)) })
		e.Field("customer", func(e *jx.Encoder) { encodeCustomer(e, inv.Customer) })
		e.Field("sold_by", func(e *jx.Encoder) { e.Str(inv.SoldBy) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range inv.Lines {
					encodeInvoiceLine(e, l)
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, inv.Subtotal) })
		e.Field("grand_total", func(e *jx.Encoder) { money(e, inv.GrandTotal) })
	})
}

func encodeInvoiceLine(e *jx.Encoder, l checkout.InvoiceLine) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("sale_id", func(e *jx.Encoder) { e.Int64(l.SaleID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(l.Category) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("retail_price", func(e *jx.Encoder) { money(e, l.RetailPrice) })
		e.Field("discount", func(e *jx.Encoder) { encodeDiscount(e, l.Discount) })
		e.Field("total", func(e *jx.Encoder) { money(e, l.Total) })
	})
}

func encodeSale(e *jx.Encoder, s sale.Sale) {
	e.Obj(func(e *jx.Encoder) {
		encodeSaleFields(e, s)
	})
}

func encodeSaleFields(e *jx.Encoder, s sale.Sale) {
	e.Field("id", func(e *jx.Encoder) { e.Int64(s.ID) })
	e.Field("invoice_no", func(e *jx.Encoder) { e.Str(s.InvoiceNo) })
	e.Field("product_id", func(e *jx.Encoder) { e.Str(s.ProductID) })
	e.Field("product_name", func(e *jx.Encoder) { e.Str(s.ProductName) })
	e.Field("category", func(e *jx.Encoder) { e.Str(s.Category) })
	e.Field("quantity", func(e *jx.Encoder) { e.Int(s.Quantity) })
	e.Field("retail_price", func(e *jx.Encoder) { money(e, s.RetailPrice) })
	e.Field("subtotal", func(e *jx.Encoder) { money(e, s.Subtotal) })
	e.Field("discount", func(e *jx.Encoder) { encodeDiscount(e, s.Discount) })
	e.Field("effective_total", func(e *jx.Encoder) { money(e, s.EffectiveTotal) })
	e.Field("date", func(e *jx.Encoder) { e.Str(s.Date.Format(time.RFC3339)) })
	e.Field("sold_by", func(e *jx.Encoder) { e.Str(s.SoldBy) })
	e.Field("customer_name", func(e *jx.Encoder) { e.Str(s.CustomerName) })
	e.Field("customer_phone", func(e *jx.Encoder) { e.Str(s.CustomerPhone) })
}

func encodeRefundLines(e *jx.Encoder, lines []refund.Line) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				encodeSaleFields(e, l.Sale)
				e.Field("refunded", func(e *jx.Encoder) { e.Int(l.Refunded) })
				e.Field("remaining", func(e *jx.Encoder) { e.Int(l.Remaining) })
			})
		}
	})
}

func decodeRefund(r *http.Request) (refund.Request, error) {
	var req refund.Request
	err := readBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sale_id":
			req.SaleID, err = decodeSaleID(d)
		case "product_id":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = decodeQuantity(d, key)
		case "reason":
			req.Reason, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

// decodeSaleID accepts the id as a number or as the text entered at the till.
func decodeSaleID(d *jx.Decoder) (int64, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return sale.ParseID(s)
	}
	return d.Int64()
}

func encodeReturn(e *jx.Encoder, r *sale.Return) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(r.ID) })
		e.Field("sale_id", func(e *jx.Encoder) { e.Int64(r.SaleID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(r.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(r.Quantity) })
		e.Field("amount", func(e *jx.Encoder) { money(e, r.Amount) })
		e.Field("date", func(e *jx.Encoder) { e.Str(r.Date.Format(time.RFC3339)) })
		e.Field("reason", func(e *jx.Encoder) { e.Str(r.Reason) })
	})
}

func encodeSummary(e *jx.Encoder, s *sale.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("today_revenue", func(e *jx.Encoder) { money(e, s.TodayRevenue) })
		e.Field("month_revenue", func(e *jx.Encoder) { money(e, s.MonthRevenue) })
		e.Field("month_refunded", func(e *jx.Encoder) { money(e, s.MonthRefunded) })
		e.Field("profit", func(e *jx.Encoder) { money(e, s.Profit) })
		e.Field("inventory_value", func(e *jx.Encoder) { money(e, s.InventoryValue) })
		e.Field("low_stock_count", func(e *jx.Encoder) { e.Int(s.LowStockCount) })
	})
}

// queryLimit parses the optional ?limit= parameter.
func queryLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, failure.Invalid("limit", "must be a positive integer")
	}
	return n, nil
}
