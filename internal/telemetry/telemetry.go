// Package telemetry records POS metrics and traces units of work.
package telemetry

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/posledger/internal/domain/failure"
)

// Scope is the instrumentation scope name for meters and tracers.
const Scope = "github.com/xenking/posledger"

// Recorder counts checkouts, refunds and failures. A nil *Recorder drops
// every measurement.
type Recorder struct {
	checkouts metric.Int64Counter
	refunds   metric.Int64Counter
	failures  metric.Int64Counter
	revenue   metric.Float64Counter
}

// NewRecorder creates the counters on mp. A nil mp uses a no-op provider.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(Scope)

	var (
		r   Recorder
		err error
	)
	if r.checkouts, err = meter.Int64Counter("pos.checkouts",
		metric.WithDescription("Committed checkouts"),
	); err != nil {
		return nil, errors.Wrap(err, "checkouts counter")
	}
	if r.refunds, err = meter.Int64Counter("pos.refunds",
		metric.WithDescription("Committed refunds"),
	); err != nil {
		return nil, errors.Wrap(err, "refunds counter")
	}
	if r.failures, err = meter.Int64Counter("pos.failures",
		metric.WithDescription("Failed units of work by kind"),
	); err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	if r.revenue, err = meter.Float64Counter("pos.revenue",
		metric.WithDescription("Invoiced grand total"),
	); err != nil {
		return nil, errors.Wrap(err, "revenue counter")
	}
	return &r, nil
}

// Checkout records a committed checkout with its grand total.
func (r *Recorder) Checkout(ctx context.Context, lines int, total float64) {
	if r == nil {
		return
	}
	r.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.Int("pos.lines", lines)))
	r.revenue.Add(ctx, total)
}

// Refund records a committed refund.
func (r *Recorder) Refund(ctx context.Context) {
	if r == nil {
		return
	}
	r.refunds.Add(ctx, 1)
}

// Failure records a failed operation, labelled by its failure kind.
func (r *Recorder) Failure(ctx context.Context, op string, err error) {
	if r == nil || err == nil {
		return
	}
	r.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pos.op", op),
		attribute.String("failure.kind", kindLabel(err)),
	))
}

func kindLabel(err error) string {
	if k := failure.KindOf(err); k != "" {
		return string(k)
	}
	return "internal"
}
