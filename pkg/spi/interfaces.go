package spi

import (
	"context"
	"errors"

	"github.com/username/archflow/pkg/core"
)

// ErrNotAvailable is returned by FileSource.Read when the file for the
// requested height is not visible yet. Under a remote-backed mount the
// directory listing can be stale, so this is always a transient condition,
// never end-of-chain.
var ErrNotAvailable = errors.New("block file not available")

// FileSource abstracts the archival directory holding one file per block.
type FileSource interface {
	// Peek reports whether the file for the given height is visible now.
	Peek(ctx context.Context, height uint64) (bool, error)

	// Read returns the raw bytes of the file for the given height, or
	// ErrNotAvailable if it has not appeared yet.
	Read(ctx context.Context, height uint64) ([]byte, error)
}

// CursorStore persists the ingestion cursor across restarts.
type CursorStore interface {
	// Load returns the stored cursor, or (nil, nil) when none exists yet.
	Load(ctx context.Context) (*core.Cursor, error)

	// Save atomically replaces the stored cursor. The pipeline must not
	// proceed past a block it cannot durably record as imported.
	Save(ctx context.Context, cursor *core.Cursor) error
}
