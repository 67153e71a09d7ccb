package sale

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/posledger/internal/domain/failure"
)

func TestSale_RefundAmount(t *testing.T) {
	s := Sale{Quantity: 3, EffectiveTotal: decimal.RequireFromString("250.00")}

	tests := []struct {
		qty  int
		want string
	}{
		{1, "83.33"},
		{2, "166.67"},
		{3, "250.00"},
	}
	for _, tt := range tests {
		got := s.RefundAmount(tt.qty)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "qty %d: want %s, got %s", tt.qty, tt.want, got)
	}

	assert.True(t, Sale{}.RefundAmount(1).IsZero())
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, s := range []string{"", "0", "-3", "abc"} {
		_, err := ParseID(s)
		assert.ErrorIs(t, err, failure.Validation, "input %q", s)
	}
}
