package spi

import (
	"context"
	"errors"

	"github.com/username/archflow/pkg/util"
)

// RetryingFileSource wraps a FileSource with retry logic for transient I/O
// errors against the underlying mount. ErrNotAvailable is not retried here;
// waiting for a file to appear is the sequencer's job, not an error.
type RetryingFileSource struct {
	inner   FileSource
	backoff *util.Backoff
}

// NewRetryingFileSource creates a new RetryingFileSource
func NewRetryingFileSource(inner FileSource, backoff *util.Backoff) *RetryingFileSource {
	return &RetryingFileSource{
		inner:   inner,
		backoff: backoff,
	}
}

// Peek reports file visibility with retry on transient errors
func (s *RetryingFileSource) Peek(ctx context.Context, height uint64) (bool, error) {
	var ok bool

	err := s.backoff.Retry(ctx, func() error {
		var err error
		ok, err = s.inner.Peek(ctx, height)
		return err
	})

	return ok, err
}

// Read returns the file bytes with retry on transient errors
func (s *RetryingFileSource) Read(ctx context.Context, height uint64) ([]byte, error) {
	var raw []byte

	err := s.backoff.Retry(ctx, func() error {
		var err error
		raw, err = s.inner.Read(ctx, height)
		if errors.Is(err, ErrNotAvailable) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotAvailable
	}

	return raw, nil
}
