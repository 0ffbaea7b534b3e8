// Package retry runs network operations with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// Config controls how often and how patiently an operation is retried.
// MaxRetries is the number of retries after the first attempt, so zero means
// a single attempt.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig is used for the arXiv export API.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Retryable is implemented by errors that know whether a retry can succeed.
type Retryable interface {
	Retryable() bool
}

// Do runs op until it succeeds, returns a permanent error, the retries are
// exhausted, or ctx is done.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.delay(attempt)):
		}
	}
	if cfg.MaxRetries == 0 {
		return err
	}
	return fmt.Errorf("retry: gave up after %d attempts: %w", cfg.MaxRetries+1, err)
}

func (c Config) delay(attempt int) time.Duration {
	if c.BaseDelay <= 0 {
		return 0
	}
	d := c.BaseDelay << attempt
	if c.MaxDelay > 0 && (d > c.MaxDelay || d <= 0) {
		d = c.MaxDelay
	}
	return d + rand.N(c.BaseDelay)
}

// IsRetryable reports whether err is worth another attempt. Typed errors
// decide for themselves; context errors never retry; anything else is
// classified by message.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection refused", "connection reset", "temporary failure", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	if strings.Contains(msg, "status 5") || strings.Contains(msg, "status 429") {
		return true
	}
	if strings.Contains(msg, "status 4") {
		return false
	}
	return true
}

// HTTPStatusRetryable reports whether a response status is transient.
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
