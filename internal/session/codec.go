package session

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/pricing"
)

// encodeEntry writes e as JSON. Amounts are stored as strings to keep their
// exact decimal form.
func encodeEntry(en entry) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if en.claimed {
			e.Field("claimed", func(e *jx.Encoder) { e.Bool(true) })
		}
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range en.snapshot.Lines {
					encodeLine(e, l)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(l.Category) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("retail_price", func(e *jx.Encoder) { e.Str(l.RetailPrice.String()) })
		e.Field("discount_kind", func(e *jx.Encoder) { e.Str(string(l.Discount.Kind)) })
		e.Field("discount_value", func(e *jx.Encoder) { e.Str(l.Discount.Value.String()) })
	})
}

func decodeEntry(data []byte) (entry, error) {
	var en entry
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "claimed":
			v, err := d.Bool()
			en.claimed = v
			return err
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				en.snapshot.Lines = append(en.snapshot.Lines, l)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return entry{}, errors.Wrap(err, "decode cart snapshot")
	}
	return en, nil
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			l.ProductID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "category":
			l.Category, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		case "retail_price":
			l.RetailPrice, err = decodeDecimal(d)
		case "discount_kind":
			var kind string
			kind, err = d.Str()
			l.Discount.Kind = pricing.DiscountKind(kind)
		case "discount_value":
			l.Discount.Value, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}
