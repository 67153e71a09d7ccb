package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/posledger/internal/domain/failure"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRetailPrice(t *testing.T) {
	tests := []struct {
		name string
		unit string
		tax  string
		want string
	}{
		{"no tax", "100", "0", "100"},
		{"eighteen percent", "100", "18", "118"},
		{"rounded", "9.99", "5", "10.49"},
		{"clamped high", "100", "55", "140"},
		{"clamped low", "100", "-5", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RetailPrice(dec(tt.unit), dec(tt.tax))
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		price    string
		qty      int
		discount Discount
		want     string
	}{
		{"flat", Policy{}, "100", 3, Discount{Kind: Flat, Value: dec("50")}, "250"},
		{"percent", Policy{}, "100", 3, Discount{Kind: Percent, Value: dec("10")}, "270"},
		{"percent rounded", Policy{}, "9.99", 3, Discount{Kind: Percent, Value: dec("33")}, "20.08"},
		{"none", Policy{}, "12.5", 2, None, "25"},
		{"flat above subtotal floors", Policy{}, "10", 1, Discount{Kind: Flat, Value: dec("25")}, "0"},
		{"capped flat floors", Policy{CapFlatDiscount: true}, "10", 1, Discount{Kind: Flat, Value: dec("25")}, "0"},
		{"full percent", Policy{}, "10", 4, Discount{Kind: Percent, Value: dec("100")}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.LineTotal(dec(tt.price), tt.qty, tt.discount)
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestDiscountAmountPolicy(t *testing.T) {
	d := Discount{Kind: Flat, Value: dec("25")}

	assert.True(t, dec("25").Equal(DiscountAmount(dec("10"), d)))
	assert.True(t, dec("10").Equal(Policy{CapFlatDiscount: true}.DiscountAmount(dec("10"), d)))
	assert.True(t, dec("3").Equal(DiscountAmount(dec("30"), Discount{Kind: Percent, Value: dec("10")})))
}

func TestDiscountValidate(t *testing.T) {
	require.NoError(t, None.Validate())
	require.NoError(t, Discount{Kind: Percent, Value: dec("100")}.Validate())

	for _, d := range []Discount{
		{Kind: "Bogus", Value: dec("1")},
		{Kind: Flat, Value: dec("-1")},
		{Kind: Percent, Value: dec("101")},
	} {
		err := d.Validate()
		assert.ErrorIs(t, err, failure.Validation, "discount %+v", d)
	}
}

func TestDiscountNormalizeAndString(t *testing.T) {
	assert.Equal(t, None, Discount{}.Normalize())
	assert.Equal(t, "-", None.String())
	assert.Equal(t, "Flat 50", Discount{Kind: Flat, Value: dec("50")}.String())
	assert.Equal(t, "Percent 12.5", Discount{Kind: Percent, Value: dec("12.5")}.String())
}

func TestDiscountNormalize_RoundsToStoredPrecision(t *testing.T) {
	d := Discount{Kind: Percent, Value: dec("33.333")}.Normalize()
	assert.True(t, dec("33.33").Equal(d.Value), d.Value.String())

	kept := Discount{Kind: Flat, Value: dec("12.5")}.Normalize()
	assert.Equal(t, Discount{Kind: Flat, Value: dec("12.5")}, kept)
}
