// Package retry centralizes the backoff policy applied to fetch operations,
// parameterized by failure classification.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"jobwatch/internal/model"
)

// Policy decides whether and when an operation is attempted again.
//
// Timeout and NetworkError failures get up to MaxRetries additional attempts
// with exponential backoff and jitter. Blocked gets exactly one retry after
// the long Cooldown, then the caller gives up on that item. DecodeError is
// never retried: an encoding mismatch is a structural bug to surface, not a
// transient condition.
type Policy struct {
	MaxRetries int           // additional attempts after the first failure
	BaseDelay  time.Duration // delay before the first retry, doubled each attempt
	Cooldown   time.Duration // single long pause after a Blocked failure
}

// DefaultPolicy mirrors the retry posture used across sources unless config
// overrides it.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  5 * time.Second,
		Cooldown:   60 * time.Second,
	}
}

// Do runs fn, retrying per the policy. The returned error is the last
// failure when all permitted attempts are exhausted.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}

	retries := 0
	cooledDown := false
	for {
		var delay time.Duration
		switch {
		case !retryable(err):
			return err
		case model.FetchKindOf(err) == model.FetchBlocked:
			if cooledDown {
				return err
			}
			cooledDown = true
			delay = p.Cooldown
			if ra := retryAfterOf(err); ra > delay {
				delay = ra
			}
		default:
			if retries >= p.MaxRetries {
				return err
			}
			retries++
			delay = p.backoffDelay(retries, err)
		}

		logger.Warn("retrying after transient error",
			"op", op,
			"attempt", retries,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// A Retry-After carried by the error takes precedence.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	if ra := retryAfterOf(err); ra > 0 {
		return ra
	}

	// Exponential: BaseDelay * 2^(attempt-1)
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// retryable reports whether err is worth another attempt at all.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch model.FetchKindOf(err) {
	case model.FetchTimeout, model.FetchNetworkError, model.FetchBlocked:
		return true
	case model.FetchDecodeError:
		return false
	}
	// Unclassified errors (parse bugs, storage) are not the fetch layer's
	// transient failures.
	return false
}

func retryAfterOf(err error) time.Duration {
	var fe *model.FetchError
	if errors.As(err, &fe) {
		return fe.RetryAfter
	}
	return 0
}
