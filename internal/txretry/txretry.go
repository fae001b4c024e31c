// Package txretry re-runs a transactional write when the database reports a
// transient lock conflict.
//
// The attempt function owns its transaction: it begins, commits, and rolls
// back. Run only decides whether the returned error warrants another attempt
// and waits between attempts with linear backoff (Backoff × attempt number).
package txretry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/fulfillment/internal/domain/apperr"
)

// PostgreSQL SQLSTATE codes treated as write conflicts.
const (
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeLockNotAvailable     = "55P03"
)

// ExhaustedError is returned when every attempt failed with a conflict.
type ExhaustedError struct {
	Op       string
	Attempts int
	// Err is the conflict returned by the last attempt.
	Err error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retries exceeded for %s", e.Op)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Kind classifies the error as RetryExhausted.
func (e *ExhaustedError) Kind() apperr.Kind { return apperr.RetryExhausted }

// Policy configures Run. Zero fields take the defaults of DefaultPolicy.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration

	// IsConflict decides whether an error is retried.
	IsConflict func(error) bool
	// Sleep waits between attempts. It returns early with ctx.Err() on cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called after a conflicting attempt, before sleeping.
	OnRetry func(ctx context.Context, op string, attempt int, err error)
}

// DefaultPolicy allows three attempts with 100ms linear backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     100 * time.Millisecond,
		IsConflict:  IsConflict,
		Sleep:       Sleep,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.IsConflict == nil {
		p.IsConflict = d.IsConflict
	}
	if p.Sleep == nil {
		p.Sleep = d.Sleep
	}
	return p
}

// Run calls fn until it succeeds, fails with a non-conflict error, or the
// attempt budget is spent. Attempts are numbered from 1. There is no wait
// after the final attempt.
func Run[T any](ctx context.Context, op string, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	p = p.withDefaults()

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if !p.IsConflict(err) {
			return zero, err
		}
		lastErr = err

		if p.OnRetry != nil {
			p.OnRetry(ctx, op, attempt, err)
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := p.Sleep(ctx, p.Backoff*time.Duration(attempt)); err != nil {
			return zero, errors.Wrapf(err, "%s: wait before attempt %d", op, attempt+1)
		}
	}
	return zero, &ExhaustedError{Op: op, Attempts: p.MaxAttempts, Err: lastErr}
}

// IsConflict reports whether err is a PostgreSQL deadlock, serialization
// failure, or lock timeout.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeDeadlockDetected, codeSerializationFailure, codeLockNotAvailable:
		return true
	}
	return false
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
