// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package retry wraps remote operations with bounded retries, a fixed delay
// and random jitter.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/metrics"
	"github.com/ManuGH/framehaul/internal/telemetry"
)

const (
	defaultAttempts = 3
	defaultDelay    = time.Second
	defaultJitter   = 500 * time.Millisecond
)

// Policy configures a retried operation.
type Policy struct {
	Op        string        // label used in logs and metrics
	Attempts  int           // total attempts including the first one
	Delay     time.Duration // fixed pause between attempts
	Jitter    time.Duration // upper bound of the uniform random addition to Delay
	Retryable func(error) bool

	// sleep is replaced in tests.
	sleep func(context.Context, time.Duration) error
}

// Default returns the policy used for listing and transfer calls.
func Default(op string) Policy {
	return Policy{Op: op, Attempts: defaultAttempts, Delay: defaultDelay, Jitter: defaultJitter}
}

// WithOp returns a copy of p labelled with op.
func (p Policy) WithOp(op string) Policy {
	p.Op = op
	return p
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The wrapper is transparent to
// errors.Is/As.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func (p Policy) retryable(err error) bool {
	if IsPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

func (p Policy) pause() time.Duration {
	d := p.Delay
	if p.Jitter > 0 {
		d += rand.N(p.Jitter + 1) // #nosec G404 -- jitter only
	}
	return d
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	logger := xglog.WithComponentFromContext(ctx, "retry")

	name := "remote"
	if p.Op != "" {
		name += "." + p.Op
	}
	ctx, span := telemetry.Tracer("framehaul/retry").Start(ctx, name,
		trace.WithAttributes(attribute.String(telemetry.RemoteOpKey, p.Op)))
	defer span.End()
	finish := func(attempt int, err error) {
		span.SetAttributes(attribute.Int(telemetry.AttemptsKey, attempt))
		telemetry.Fail(span, err)
	}

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			finish(attempt, nil)
			return v, nil
		}
		if !p.retryable(err) {
			finish(attempt, err)
			return zero, err
		}
		if attempt >= attempts {
			metrics.RecordGiveUp(p.Op)
			finish(attempt, err)
			return zero, err
		}

		wait := p.pause()
		logger.Warn().
			Err(err).
			Str(xglog.FieldOp, p.Op).
			Int(xglog.FieldAttempt, attempt).
			Int(xglog.FieldAttempts, attempts).
			Dur("retry_in", wait).
			Msg("remote operation failed, retrying")
		metrics.RecordRetry(p.Op)

		if serr := sleep(ctx, wait); serr != nil {
			finish(attempt, err)
			return zero, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
