// Package file persists the ingestion cursor as a small JSON file next to
// the node's data. Writes go through a temp file, fsync, and rename so a
// crash never leaves a torn cursor behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/username/archflow/pkg/core"
	"github.com/username/archflow/pkg/spi"
)

type Store struct {
	path string
}

// Ensure Store implements spi.CursorStore
var _ spi.CursorStore = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load(ctx context.Context) (*core.Cursor, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cursor core.Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cursor: %w", err)
	}
	return &cursor, nil
}

func (s *Store) Save(ctx context.Context, cursor *core.Cursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cursor-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
