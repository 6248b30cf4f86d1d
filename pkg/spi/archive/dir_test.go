package archive

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/username/archflow/pkg/spi"
)

func TestDir_Path(t *testing.T) {
	d := NewDir("/archive")

	cases := map[uint64]string{
		1:         "/archive/0/0/1.rlp.lz4",
		999:       "/archive/0/0/999.rlp.lz4",
		1000:      "/archive/0/0/1000.rlp.lz4",
		1001:      "/archive/0/1000/1001.rlp.lz4",
		1_000_000: "/archive/0/999000/1000000.rlp.lz4",
		1_234_567: "/archive/1000000/1234000/1234567.rlp.lz4",
	}
	for height, want := range cases {
		if got := d.Path(height); got != filepath.FromSlash(want) {
			t.Errorf("Path(%d) = %s, want %s", height, got, want)
		}
	}
}

func TestDir_PeekRead(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)
	ctx := context.Background()

	ok, err := d.Peek(ctx, 5)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if ok {
		t.Error("Peek reported a file that does not exist")
	}

	if _, err := d.Read(ctx, 5); !errors.Is(err, spi.ErrNotAvailable) {
		t.Errorf("expected ErrNotAvailable, got %v", err)
	}

	payload := []byte("block-5")
	path := d.Path(5)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err = d.Peek(ctx, 5)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if !ok {
		t.Error("Peek missed an existing file")
	}

	raw, err := d.Read(ctx, 5)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(raw, payload) {
		t.Errorf("Read returned %s, want %s", raw, payload)
	}
}
