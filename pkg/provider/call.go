package provider

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/telemetry/tracing"
)

// caller applies rate limiting, a per-call timeout, a span and metrics to
// every outbound request of one slot.
type caller struct {
	kind    string
	mode    string
	model   string
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.Manager
}

func newCaller(kind, mode, model string, perSecond float64, timeout time.Duration, m *metrics.Manager) caller {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return caller{kind: kind, mode: mode, model: model, limiter: limiter, timeout: timeout, metrics: m}
}

func (c caller) do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracing.Start(ctx, "provider."+c.kind,
		attribute.String("provider.mode", c.mode),
		attribute.String("provider.model", c.model),
	)
	start := time.Now()
	defer func() {
		c.metrics.RecordProviderCall(c.kind, c.mode, err, time.Since(start))
		tracing.End(span, err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return callError(c.kind, err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		return callError(c.kind, err)
	}
	return nil
}
