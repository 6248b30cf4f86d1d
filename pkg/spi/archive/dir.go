package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/username/archflow/pkg/spi"
)

// Dir implements spi.FileSource over a local (possibly remote-backed) mount.
// The producer shards files two levels deep by height so no single directory
// grows unbounded:
//
//	<root>/<million bucket>/<thousand bucket>/<height>.rlp.lz4
//
// e.g. height 1234567 lives at <root>/1000000/1234000/1234567.rlp.lz4.
type Dir struct {
	root string
}

var _ spi.FileSource = (*Dir)(nil)

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Path returns the expected location of the file for the given height.
func (d *Dir) Path(height uint64) string {
	f := ((height - 1) / 1_000_000) * 1_000_000
	s := ((height - 1) / 1_000) * 1_000
	return filepath.Join(d.root, fmt.Sprintf("%d", f), fmt.Sprintf("%d", s), fmt.Sprintf("%d.rlp.lz4", height))
}

func (d *Dir) Peek(ctx context.Context, height uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(d.Path(height))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dir) Read(ctx context.Context, height uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(d.Path(height))
	if os.IsNotExist(err) {
		// Stat raced with a stale listing; let the caller keep polling.
		return nil, spi.ErrNotAvailable
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}
