package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/posledger/internal/domain/ledger"
)

var _ ledger.Ledger = (*TraceLedger)(nil)

// TraceLedger wraps a ledger.Ledger and opens a span per unit of work.
type TraceLedger struct {
	next   ledger.Ledger
	tracer trace.Tracer
}

// NewTraceLedger decorates next with spans from tp. A nil tp disables tracing.
func NewTraceLedger(next ledger.Ledger, tp trace.TracerProvider) *TraceLedger {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &TraceLedger{next: next, tracer: tp.Tracer(Scope)}
}

// Atomic implements ledger.Ledger.
func (l *TraceLedger) Atomic(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	ctx, span := l.tracer.Start(ctx, "ledger.Atomic", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	err := l.next.Atomic(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("failure.kind", kindLabel(err)))
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
