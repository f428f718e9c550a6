// Package retry implements bounded exponential backoff for transient
// client failures. External clients (embedding, generation, remote
// fetch, reranking) wrap their network calls with Do; data-integrity
// and configuration errors are marked Permanent so they surface
// immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config configures retry behaviour.
type Config struct {
	MaxRetries   int           // retry attempts, not counting the initial call
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // cap on the delay between retries
	Multiplier   float64       // exponential backoff multiplier
}

// DefaultConfig returns the retry policy used at client boundaries:
// 3 attempts, 0.5s initial delay, doubling each time.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so Do surfaces it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the Permanent marker.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do executes fn, retrying transient failures with exponential backoff.
// Permanent errors and context cancellation stop retrying immediately.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		lastErr = err

		if attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
