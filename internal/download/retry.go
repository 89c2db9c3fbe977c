package download

import (
	"context"
	"errors"
	"slices"
	"time"

	"lecturevault/internal/udemy"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides how many times and how fast url resolution and fetches are retried.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Jitter is the randomization factor applied to every delay, 0 disables it.
	Jitter        float64
	RetryStatuses []int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  500 * time.Millisecond,
		Multiplier:    2,
		MaxDelay:      8 * time.Second,
		RetryStatuses: []int{429, 500, 502, 503, 504},
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.RetryStatuses == nil {
		p.RetryStatuses = def.RetryStatuses
	}
	return p
}

func (p RetryPolicy) Retryable(status int) bool {
	return slices.Contains(p.RetryStatuses, status)
}

// writeFailure marks a local filesystem error, those are never retried.
type writeFailure struct {
	err error
}

func (w *writeFailure) Error() string {
	return w.err.Error()
}

func (w *writeFailure) Unwrap() error {
	return w.err
}

// classify wraps errors that must not be retried in backoff.Permanent. Status errors are retried
// only when their status is in RetryStatuses, anything that is not recognized is treated as a
// network error and retried.
func (p RetryPolicy) classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *udemy.StatusError
	if errors.As(err, &statusErr) {
		if p.Retryable(statusErr.Status) {
			return err
		}
		return backoff.Permanent(err)
	}
	var decodeErr *udemy.DecodeError
	var writeErr *writeFailure
	if errors.As(err, &decodeErr) ||
		errors.As(err, &writeErr) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}

// Do runs op until it succeeds, fails permanently or runs out of attempts. notify is called
// before every retry and may be nil.
func (p RetryPolicy) Do(ctx context.Context, op func() error, notify func(attempt int, err error, wait time.Duration)) error {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0

	attempt := 1
	return backoff.RetryNotify(
		func() error {
			return p.classify(op())
		},
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			if notify != nil {
				notify(attempt, err, wait)
			}
			attempt++
		},
	)
}
