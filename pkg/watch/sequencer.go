// Package watch discovers archival block files and hands them out strictly
// in increasing, gapless height order.
package watch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/username/archflow/pkg/core"
	"github.com/username/archflow/pkg/spi"
	"github.com/username/archflow/pkg/util"
)

// Sequencer is a two-state machine with one irreversible transition. In
// Backfill it scans eagerly; the first time the next required file is
// missing it flips to Tailing and never flips back, no matter how large a
// backlog later appears. In Tailing a missing file is a transient condition
// waited out with escalating backoff, indefinitely.
type Sequencer struct {
	src  spi.FileSource
	wait util.Wait

	mu   sync.RWMutex
	mode core.Mode
}

// NewSequencer creates a Sequencer starting in the given mode (normally the
// mode recorded in the cursor). poll and maxPoll bound the tailing backoff.
func NewSequencer(src spi.FileSource, mode core.Mode, poll, maxPoll time.Duration) *Sequencer {
	if mode == "" {
		mode = core.ModeBackfill
	}
	return &Sequencer{
		src:  src,
		wait: util.Wait{Base: poll, Max: maxPoll},
		mode: mode,
	}
}

// Mode returns the current ingestion mode.
func (s *Sequencer) Mode() core.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Next blocks until the file for exactly the given height is available and
// returns its raw bytes. It never skips a height and never returns data for
// any other height; callers re-request a height only after a failed import.
func (s *Sequencer) Next(ctx context.Context, height uint64) ([]byte, error) {
	s.wait.Reset()

	for {
		ok, err := s.src.Peek(ctx, height)
		if err != nil {
			return nil, err
		}

		if ok {
			raw, err := s.src.Read(ctx, height)
			if errors.Is(err, spi.ErrNotAvailable) {
				// The listing showed the file but the read missed it;
				// eventual consistency of the mount. Keep polling.
				ok = false
			} else if err != nil {
				return nil, err
			} else {
				return raw, nil
			}
		}

		if !ok {
			s.flipToTailing(height)
			if err := s.wait.Sleep(ctx); err != nil {
				return nil, err
			}
		}
	}
}

func (s *Sequencer) flipToTailing(height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == core.ModeTailing {
		return
	}
	s.mode = core.ModeTailing
	log.Printf("caught up to front of archive at block %d, switching to tailing", height-1)
}
