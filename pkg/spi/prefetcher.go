package spi

import (
	"context"
	"fmt"
	"sync"

	"github.com/username/archflow/pkg/decode"
)

// Sequenced hands out raw block files strictly in order, blocking until the
// requested height is available.
type Sequenced interface {
	Next(ctx context.Context, height uint64) ([]byte, error)
}

// Decoded is one block file read and decoded ahead of the importer.
type Decoded struct {
	Height uint64
	Env    *decode.Envelope
}

// Prefetcher reads and decodes block files in the background to overlap
// CPU-bound decoding with the next file's I/O wait. Application of results
// to the execution engine stays ordered: the importer consumes from a single
// buffered channel in height order.
type Prefetcher struct {
	src    Sequenced
	buffer chan *Decoded
	errCh  chan error

	// control
	stopCh chan struct{}
	cancel context.CancelFunc

	// state
	currentHeight uint64
	active        bool
	mu            sync.Mutex
	wg            sync.WaitGroup
}

// NewPrefetcher creates a new Prefetcher
func NewPrefetcher(src Sequenced, bufferSize int) *Prefetcher {
	return &Prefetcher{
		src:    src,
		buffer: make(chan *Decoded, bufferSize),
		errCh:  make(chan error, 1),
		stopCh: make(chan struct{}),
	}
}

// Start begins the background fetch loop
func (p *Prefetcher) Start(ctx context.Context, startHeight uint64) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.currentHeight = startHeight
	// The loop gets its own cancellable context: src.Next can block
	// arbitrarily long waiting for a file to appear, and Stop must be
	// able to interrupt that wait even while ctx itself is still live.
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx)
}

func (p *Prefetcher) loop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		if err := p.fetchNext(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Decode failures and source errors are fatal for the
			// pipeline; surface them and stop fetching.
			select {
			case p.errCh <- err:
			default:
			}
			return
		}
	}
}

func (p *Prefetcher) fetchNext(ctx context.Context) error {
	raw, err := p.src.Next(ctx, p.currentHeight)
	if err != nil {
		return err
	}

	env, err := decode.Block(raw, p.currentHeight)
	if err != nil {
		return err
	}

	select {
	case p.buffer <- &Decoded{Height: p.currentHeight, Env: env}:
		p.currentHeight++
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return fmt.Errorf("stopped")
	}
}

// Next returns the next decoded block or error
func (p *Prefetcher) Next(ctx context.Context) (*Decoded, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-p.errCh:
		return nil, err
	case d := <-p.buffer:
		return d, nil
	}
}

// Stop cancels the fetch loop and waits for it to exit, unblocking any
// in-progress wait for a not-yet-present file.
func (p *Prefetcher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	p.cancel()
	close(p.stopCh)
	p.wg.Wait()
	p.active = false
}
