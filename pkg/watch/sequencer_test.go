package watch

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/username/archflow/pkg/core"
	"github.com/username/archflow/pkg/spi"
)

// memSource is an in-memory FileSource whose contents tests mutate to
// simulate files appearing over time.
type memSource struct {
	mu    sync.Mutex
	files map[uint64][]byte
}

func newMemSource() *memSource {
	return &memSource{files: make(map[uint64][]byte)}
}

func (m *memSource) put(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[height] = []byte(fmt.Sprintf("block-%d", height))
}

func (m *memSource) Peek(ctx context.Context, height uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[height]
	return ok, nil
}

func (m *memSource) Read(ctx context.Context, height uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.files[height]
	if !ok {
		return nil, spi.ErrNotAvailable
	}
	return raw, nil
}

func TestSequencer_StrictOrder(t *testing.T) {
	src := newMemSource()
	// Populate out of natural listing order
	for _, h := range []uint64{3, 1, 5, 2, 4} {
		src.put(h)
	}

	s := NewSequencer(src, core.ModeBackfill, time.Millisecond, 10*time.Millisecond)
	ctx := context.Background()

	for h := uint64(1); h <= 5; h++ {
		raw, err := s.Next(ctx, h)
		if err != nil {
			t.Fatalf("Next(%d) failed: %v", h, err)
		}
		if !bytes.Equal(raw, []byte(fmt.Sprintf("block-%d", h))) {
			t.Errorf("Next(%d) returned wrong file: %s", h, raw)
		}
	}

	if s.Mode() != core.ModeBackfill {
		t.Errorf("mode flipped while files were still available: %s", s.Mode())
	}
}

func TestSequencer_FlipOnceAndTail(t *testing.T) {
	src := newMemSource()
	// Blocks 1-4 exist; 5 is absent: the backfill/tailing boundary.
	for h := uint64(1); h <= 4; h++ {
		src.put(h)
	}

	s := NewSequencer(src, core.ModeBackfill, time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for h := uint64(1); h <= 4; h++ {
		if _, err := s.Next(ctx, h); err != nil {
			t.Fatalf("Next(%d) failed: %v", h, err)
		}
	}
	if s.Mode() != core.ModeBackfill {
		t.Fatal("mode flipped before the first missing file")
	}

	// Ask for the missing block in the background; it should block and
	// flip the mode, then return once the file appears.
	type result struct {
		raw []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := s.Next(ctx, 5)
		done <- result{raw, err}
	}()

	time.Sleep(50 * time.Millisecond)
	if s.Mode() != core.ModeTailing {
		t.Error("expected flip to tailing on first missing file")
	}
	select {
	case <-done:
		t.Fatal("Next(5) returned before the file existed")
	default:
	}

	src.put(5)
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Next(5) failed: %v", r.err)
		}
		if !bytes.Equal(r.raw, []byte("block-5")) {
			t.Errorf("Next(5) returned wrong file: %s", r.raw)
		}
	case <-time.After(time.Second):
		t.Fatal("Next(5) did not return after the file appeared")
	}

	// A burst of new files does not revert the mode.
	for h := uint64(6); h <= 20; h++ {
		src.put(h)
	}
	for h := uint64(6); h <= 20; h++ {
		if _, err := s.Next(ctx, h); err != nil {
			t.Fatalf("Next(%d) failed: %v", h, err)
		}
	}
	if s.Mode() != core.ModeTailing {
		t.Error("mode reverted to backfill after a backlog appeared")
	}
}

func TestSequencer_CancelWhileWaiting(t *testing.T) {
	src := newMemSource()
	s := NewSequencer(src, core.ModeTailing, time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Next(ctx, 1)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected context error, got nil")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return promptly after cancellation")
	}
}

func TestSequencer_StartsTailing(t *testing.T) {
	src := newMemSource()
	src.put(1)

	// A restart in tailing mode must stay in tailing.
	s := NewSequencer(src, core.ModeTailing, time.Millisecond, 10*time.Millisecond)
	if _, err := s.Next(context.Background(), 1); err != nil {
		t.Fatalf("Next(1) failed: %v", err)
	}
	if s.Mode() != core.ModeTailing {
		t.Errorf("expected tailing, got %s", s.Mode())
	}
}
