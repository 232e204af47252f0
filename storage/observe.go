package storage

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth-server/instrumentation"
)

// Observer traces and measures store operations.
// The zero value records nothing.
type Observer struct {
	backend string
	inst    *instrumentation.Instrumentation
	tracer  trace.Tracer
}

// NewObserver returns an Observer for the named backend. inst may be nil.
func NewObserver(backend string, inst *instrumentation.Instrumentation) Observer {
	o := Observer{backend: backend, inst: inst}
	if inst != nil {
		o.tracer = inst.Tracer("storage")
	}
	return o
}

// Start begins a span for operation. The returned func ends it and records
// the outcome. ErrTicketNotFound and ErrClientNotFound count as "miss", not
// as errors.
func (o Observer) Start(ctx context.Context, operation string) (context.Context, func(error)) {
	if o.inst == nil {
		return ctx, func(error) {}
	}

	ctx, span := o.tracer.Start(ctx, "storage."+operation)
	instrumentation.AddStorageAttributes(span, operation, o.backend)
	start := time.Now()

	return ctx, func(err error) {
		defer span.End()

		result := "success"
		switch {
		case err == nil:
			instrumentation.SetSpanSuccess(span)
		case isMiss(err):
			result = "miss"
			instrumentation.SetSpanSuccess(span)
		default:
			result = "error"
			instrumentation.RecordError(span, err)
		}

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		o.inst.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
	}
}

func isMiss(err error) bool {
	return errors.Is(err, ErrTicketNotFound) || errors.Is(err, ErrClientNotFound)
}
