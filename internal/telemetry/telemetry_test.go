package telemetry

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/ledger"
)

type stubLedger struct {
	err   error
	calls int
}

func (s *stubLedger) Atomic(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return fn(ctx, nil)
}

func TestTraceLedger_PassesThrough(t *testing.T) {
	inner := &stubLedger{}
	l := NewTraceLedger(inner, nil)

	ran := false
	err := l.Atomic(context.Background(), func(context.Context, ledger.Tx) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	inner.err = failure.Invalid("quantity", "must be at least 1")
	err = l.Atomic(context.Background(), func(context.Context, ledger.Tx) error { return nil })
	assert.ErrorIs(t, err, failure.Validation)
	assert.Equal(t, 2, inner.calls)
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.Checkout(context.Background(), 1, 10)
	r.Refund(context.Background())
	r.Failure(context.Background(), "checkout", errors.New("boom"))
}

func TestRecorder_Noop(t *testing.T) {
	r, err := NewRecorder(nil)
	require.NoError(t, err)
	r.Checkout(context.Background(), 2, 250)
	r.Refund(context.Background())
	r.Failure(context.Background(), "refund", &failure.OverRefundError{SaleID: 1})
	r.Failure(context.Background(), "refund", nil)
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "internal", kindLabel(errors.New("boom")))
	assert.Equal(t, string(failure.NotFound), kindLabel(failure.Missing("sale", "9")))
}
