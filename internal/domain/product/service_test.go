package product

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/posledger/internal/domain/failure"
)

// --- Mock implementations ---

type mockRepo struct {
	saved     []Product
	upsertErr error
}

func (m *mockRepo) List(context.Context) ([]Product, error) { return m.saved, nil }

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	for _, p := range m.saved {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, failure.Missing("product", id)
}

func (m *mockRepo) GetByIDs(context.Context, []string) ([]Product, error) { return nil, nil }

func (m *mockRepo) ListLowStock(context.Context) ([]Product, error) {
	var out []Product
	for _, p := range m.saved {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) Upsert(_ context.Context, p *Product) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.saved = append(m.saved, *p)
	return nil
}

type mockSequence struct {
	next int64
	err  error
}

func (m *mockSequence) Next(context.Context, string) (int64, error) {
	m.next++
	return m.next, m.err
}

func validProduct() Product {
	return Product{
		Name:         " Masala Tea ",
		Category:     "Drinks",
		SupplierID:   "S01",
		Quantity:     20,
		UnitPrice:    decimal.RequireFromString("100"),
		TaxPercent:   decimal.RequireFromString("18"),
		ReorderLevel: 5,
	}
}

func TestService_SaveAssignsSKUAndRetail(t *testing.T) {
	repo := &mockRepo{}
	s := NewService(repo, &mockSequence{next: 6}, 3)

	saved, err := s.Save(context.Background(), validProduct())
	require.NoError(t, err)

	assert.Equal(t, "007", saved.ID)
	assert.Equal(t, "Masala Tea", saved.Name)
	assert.True(t, decimal.RequireFromString("118").Equal(saved.RetailPrice), saved.RetailPrice.String())
	require.Len(t, repo.saved, 1)
}

func TestService_SaveKeepsExplicitIDAndClampsTax(t *testing.T) {
	repo := &mockRepo{}
	seq := &mockSequence{}
	s := NewService(repo, seq, 3)

	p := validProduct()
	p.ID = "SKU-1"
	p.TaxPercent = decimal.RequireFromString("60")

	saved, err := s.Save(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", saved.ID)
	assert.True(t, decimal.NewFromInt(40).Equal(saved.TaxPercent))
	assert.True(t, decimal.NewFromInt(140).Equal(saved.RetailPrice))
	assert.Zero(t, seq.next, "sequence untouched when an ID is given")
}

func TestService_SaveValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Product)
		field  string
	}{
		{"name", func(p *Product) { p.Name = "  " }, "name"},
		{"category", func(p *Product) { p.Category = "" }, "category"},
		{"supplier", func(p *Product) { p.SupplierID = "" }, "supplier_id"},
		{"quantity", func(p *Product) { p.Quantity = -1 }, "quantity"},
		{"unit price", func(p *Product) { p.UnitPrice = decimal.NewFromInt(-1) }, "unit_price"},
		{"reorder level", func(p *Product) { p.ReorderLevel = -1 }, "reorder_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			s := NewService(repo, &mockSequence{}, 3)

			p := validProduct()
			tt.mutate(&p)
			_, err := s.Save(context.Background(), p)

			var vErr *failure.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Empty(t, repo.saved)
		})
	}
}

func TestService_SaveErrors(t *testing.T) {
	seqErr := errors.New("sequence down")
	s := NewService(&mockRepo{}, &mockSequence{err: seqErr}, 3)
	_, err := s.Save(context.Background(), validProduct())
	assert.ErrorIs(t, err, seqErr)

	dbErr := errors.New("db down")
	s = NewService(&mockRepo{upsertErr: dbErr}, &mockSequence{}, 3)
	_, err = s.Save(context.Background(), validProduct())
	assert.ErrorIs(t, err, dbErr)
}

func TestService_LowStock(t *testing.T) {
	repo := &mockRepo{saved: []Product{
		{ID: "001", Quantity: 2, ReorderLevel: 5},
		{ID: "002", Quantity: 5, ReorderLevel: 5},
	}}
	s := NewService(repo, &mockSequence{}, 3)

	low, err := s.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "001", low[0].ID)

	_, err = s.Get(context.Background(), "404")
	assert.ErrorIs(t, err, failure.NotFound)
}
