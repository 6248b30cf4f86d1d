package util

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Backoff implements exponential backoff
type Backoff struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// NewBackoff creates a new Backoff instance
func NewBackoff(maxRetries int, baseDelay time.Duration) *Backoff {
	return &Backoff{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   30 * time.Second,
	}
}

// Retry executes the operation with exponential backoff
func (b *Backoff) Retry(ctx context.Context, op func() error) error {
	var err error
	for i := 0; i <= b.MaxRetries; i++ {
		if err = op(); err == nil {
			return nil
		}

		if i == b.MaxRetries {
			break
		}

		delay := time.Duration(math.Pow(2, float64(i))) * b.BaseDelay
		if delay > b.MaxDelay {
			delay = b.MaxDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", b.MaxRetries, err)
}

// Wait is an interval that escalates between calls up to a cap. It drives
// the tailing poll loop: each miss waits a little longer, each hit resets.
type Wait struct {
	Base time.Duration
	Max  time.Duration

	current time.Duration
}

// Sleep blocks for the current interval or until the context is cancelled,
// then doubles the interval (capped at Max).
func (w *Wait) Sleep(ctx context.Context) error {
	if w.current == 0 {
		w.current = w.Base
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.current):
	}
	w.current *= 2
	if w.current > w.Max {
		w.current = w.Max
	}
	return nil
}

// Reset restores the interval to its base value.
func (w *Wait) Reset() {
	w.current = 0
}
