package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docverify/internal/ledger/metrics"
	"docverify/pkg/platform/circuit"
)

// Resilient wraps a Client with bounded exponential-backoff retries, a circuit
// breaker and tracing. While the breaker is open each call makes a single
// attempt, so a recovered ledger closes it again without retry storms.
type Resilient struct {
	next       Client
	breaker    *circuit.Breaker
	maxRetries uint64
	initial    time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Resilient client.
type Option func(*Resilient)

// WithRetry sets the retry budget and first backoff interval.
func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(r *Resilient) {
		r.maxRetries = maxRetries
		if initial > 0 {
			r.initial = initial
		}
	}
}

// WithBreaker replaces the default breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Resilient) {
		if b != nil {
			r.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resilient) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resilient) { r.metrics = m }
}

func NewResilient(next Client, opts ...Option) *Resilient {
	r := &Resilient{
		next:       next,
		breaker:    circuit.New("ledger"),
		maxRetries: 3,
		initial:    100 * time.Millisecond,
		maxBackoff: 2 * time.Second,
		tracer:     otel.Tracer("docverify/ledger"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resilient) AnchorRegistration(ctx context.Context, reg Registration) (Receipt, error) {
	return call(ctx, r, "anchor_registration", reg.LicenseNumber, func(ctx context.Context) (Receipt, error) {
		return r.next.AnchorRegistration(ctx, reg)
	})
}

func (r *Resilient) AnchorRevocation(ctx context.Context, license, approver string) (Receipt, error) {
	return call(ctx, r, "anchor_revocation", license, func(ctx context.Context) (Receipt, error) {
		return r.next.AnchorRevocation(ctx, license, approver)
	})
}

func (r *Resilient) AnchorReactivation(ctx context.Context, license, approver string) (Receipt, error) {
	return call(ctx, r, "anchor_reactivation", license, func(ctx context.Context) (Receipt, error) {
		return r.next.AnchorReactivation(ctx, license, approver)
	})
}

func (r *Resilient) QueryRegistration(ctx context.Context, license string) (*DoctorView, error) {
	return call(ctx, r, "query_registration", license, func(ctx context.Context) (*DoctorView, error) {
		return r.next.QueryRegistration(ctx, license)
	})
}

// Verify is not retried; it is an admin diagnostic over the whole journal.
func (r *Resilient) Verify(ctx context.Context) (*IntegrityReport, error) {
	ctx, span := r.tracer.Start(ctx, "ledger.verify")
	defer span.End()
	report, err := r.next.Verify(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("ledger.valid", report.Valid), attribute.Int64("ledger.entries", int64(report.Entries)))
	return report, nil
}

// BreakerState exposes the breaker for health reporting.
func (r *Resilient) BreakerState() circuit.State {
	return r.breaker.State()
}

// isPermanent reports outcomes that retrying cannot change. They are answers
// from a healthy ledger, so they also count as breaker successes.
func isPermanent(err error) bool {
	return errors.Is(err, ErrAlreadyAnchored) || errors.Is(err, ErrNotAnchored)
}

func call[T any](ctx context.Context, r *Resilient, op, license string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.operation", op),
		attribute.String("ledger.license", license),
	))
	defer span.End()

	var b backoff.BackOff
	if r.breaker.IsOpen() {
		b = &backoff.StopBackOff{}
		span.AddEvent("circuit open: single attempt")
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = r.initial
		eb.MaxInterval = r.maxBackoff
		eb.MaxElapsedTime = 0
		b = backoff.WithMaxRetries(eb, r.maxRetries)
	}

	attempts := 0
	result, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempts++
		v, err := fn(ctx)
		if err != nil && (isPermanent(err) || ctx.Err() != nil) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		r.metrics.IncRetry(op)
		if r.logger != nil {
			r.logger.WarnContext(ctx, "ledger call failed, retrying",
				"operation", op,
				"license", license,
				"attempt", attempts,
				"wait_ms", wait.Milliseconds(),
				"error", err,
			)
		}
	})
	span.SetAttributes(attribute.Int("ledger.attempts", attempts))

	switch {
	case err == nil:
		r.recordSuccess(ctx)
		r.metrics.ObserveCall(op, "success", start)
		return result, nil
	case isPermanent(err):
		r.recordSuccess(ctx)
		r.metrics.ObserveCall(op, "rejected", start)
		span.SetAttributes(attribute.String("ledger.rejection", err.Error()))
		return result, err
	default:
		r.recordFailure(ctx)
		r.metrics.ObserveCall(op, "failed", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
}

func (r *Resilient) recordSuccess(ctx context.Context) {
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.metrics.SetCircuitOpen(false)
		if r.logger != nil {
			r.logger.InfoContext(ctx, "ledger circuit closed")
		}
	}
}

func (r *Resilient) recordFailure(ctx context.Context) {
	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.metrics.SetCircuitOpen(true)
		if r.logger != nil {
			r.logger.WarnContext(ctx, "ledger circuit opened")
		}
	}
}
