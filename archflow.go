// Package archflow imports an EVM chain's canonical history from archival
// block files. Blocks are decoded, executed by an external engine, augmented
// with deposit pseudo transactions, committed, and acknowledged through a
// persisted cursor — strictly sequentially, one block at a time, so that the
// result is indistinguishable from blocks arriving over the network.
package archflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/username/archflow/pkg/config"
	"github.com/username/archflow/pkg/core"
	"github.com/username/archflow/pkg/decode"
	"github.com/username/archflow/pkg/deposit"
	"github.com/username/archflow/pkg/metrics"
	"github.com/username/archflow/pkg/monitor"
	"github.com/username/archflow/pkg/spi"
	"github.com/username/archflow/pkg/watch"
)

var (
	// ErrResultMismatch indicates the engine's execution results disagree
	// with the commitments already sealed in the block header.
	ErrResultMismatch = errors.New("execution result does not match header commitments")

	// ErrCursorSave indicates the cursor could not be durably recorded.
	// The importer must not proceed past such a block: a restart would
	// otherwise re-synthesize or skip pseudo transactions.
	ErrCursorSave = errors.New("cursor persistence failed")
)

// Ingestor is the import driver orchestrating the pipeline per block:
// sequencer -> decoder -> continuity guard -> engine execute -> deposit
// synthesis -> engine commit -> cursor advance.
type Ingestor struct {
	cfg     *config.Config
	src     spi.FileSource
	engine  core.ExecutionEngine
	cursors spi.CursorStore
	synth   *deposit.Synthesizer
	guard   *monitor.Guard
}

// New creates a new Ingestor instance
func New(cfg *config.Config, src spi.FileSource, engine core.ExecutionEngine, cursors spi.CursorStore) *Ingestor {
	system := deposit.DefaultSystemAddress
	if cfg.DepositAddress != "" {
		system = common.HexToAddress(cfg.DepositAddress)
	}
	return &Ingestor{
		cfg:     cfg,
		src:     src,
		engine:  engine,
		cursors: cursors,
		synth:   deposit.NewSynthesizer(system),
		guard:   monitor.NewGuard(),
	}
}

// Run drives ingestion until the context is cancelled or a fatal error
// halts forward progress. It resumes from the persisted cursor; when none
// exists it starts at block 1 in backfill mode. Shutdown mid-block simply
// discards that block's work, which a restart repeats.
func (in *Ingestor) Run(ctx context.Context) error {
	cur, err := in.cursors.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}
	if cur == nil {
		cur = &core.Cursor{Mode: core.ModeBackfill}
	}
	if cur.Mode == "" {
		cur.Mode = core.ModeBackfill
	}
	if cur.LastImported > 0 {
		in.guard.Prime(cur.LastImported, cur.LastHash)
	}

	seq := watch.NewSequencer(in.src, cur.Mode, in.cfg.PollInterval, in.cfg.MaxPollInterval)
	height := cur.LastImported + 1

	metrics.LastImported.Set(float64(cur.LastImported))
	setModeMetric(cur.Mode)
	log.Printf("starting import at block %d (%s)", height, cur.Mode)

	// Read-ahead overlaps decoding with the next file's I/O wait. Result
	// application below stays on this goroutine, ordered and serialized.
	var pf *spi.Prefetcher
	if in.cfg.PrefetchDepth > 0 {
		pf = spi.NewPrefetcher(seq, in.cfg.PrefetchDepth)
		pf.Start(ctx, height)
		defer pf.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		d, err := in.next(ctx, pf, seq, height)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, decode.ErrMalformed) || errors.Is(err, decode.ErrMismatch) {
				metrics.DecodeFailures.Inc()
			}
			return err
		}

		if err := in.importBlock(ctx, seq, cur, d); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		height = cur.LastImported + 1
	}
}

func (in *Ingestor) next(ctx context.Context, pf *spi.Prefetcher, seq *watch.Sequencer, height uint64) (*spi.Decoded, error) {
	if pf != nil {
		return pf.Next(ctx)
	}
	raw, err := seq.Next(ctx, height)
	if err != nil {
		return nil, err
	}
	env, err := decode.Block(raw, height)
	if err != nil {
		return nil, err
	}
	return &spi.Decoded{Height: height, Env: env}, nil
}

// importBlock applies one decoded block with bounded retry. Decoding and
// synthesis are pure functions of the file, so re-attempting the same block
// after an engine hiccup is safe. Invariant violations are never retried.
func (in *Ingestor) importBlock(ctx context.Context, seq *watch.Sequencer, cur *core.Cursor, d *spi.Decoded) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = in.importOnce(ctx, seq, cur, d)
		if err == nil {
			return nil
		}
		if isFatal(err) || ctx.Err() != nil || attempt >= in.cfg.MaxRetries {
			return err
		}

		metrics.ImportRetries.Inc()
		log.Printf("import of block %d failed (attempt %d/%d): %v", d.Height, attempt+1, in.cfg.MaxRetries, err)
		select {
		case <-ctx.Done():
			return err
		case <-timeAfter(in.cfg.RetryDelay, attempt):
		}
	}
}

func (in *Ingestor) importOnce(ctx context.Context, seq *watch.Sequencer, cur *core.Cursor, d *spi.Decoded) error {
	block := d.Env.Block

	if err := in.guard.Check(block); err != nil {
		return err
	}

	res, err := in.engine.Execute(ctx, block)
	if err != nil {
		return err
	}
	if err := checkCommitments(block, res); err != nil {
		return err
	}

	pseudoTxs, pseudoReceipts, err := in.synth.Synthesize(block.NumberU64(), res.Transfers)
	if err != nil {
		return err
	}

	record := &core.BlockRecord{
		Block:          block,
		Receipts:       res.Receipts,
		PseudoTxs:      pseudoTxs,
		PseudoReceipts: pseudoReceipts,
	}
	if err := in.engine.Commit(ctx, record); err != nil {
		return err
	}

	// The block is durably committed; only now may the cursor move. The
	// mode flip is recorded here too, making it survive restarts.
	cur.LastImported = d.Height
	cur.LastHash = block.Hash()
	cur.Mode = seq.Mode()
	if err := in.cursors.Save(ctx, cur); err != nil {
		return fmt.Errorf("%w: %v", ErrCursorSave, err)
	}

	in.guard.Accept(block)
	in.finishBlock(ctx, cur, block, len(pseudoTxs))
	return nil
}

func (in *Ingestor) finishBlock(ctx context.Context, cur *core.Cursor, block *types.Block, deposits int) {
	metrics.LastImported.Set(float64(cur.LastImported))
	metrics.ImportedBlocks.Inc()
	metrics.PseudoTransactions.Add(float64(deposits))
	setModeMetric(cur.Mode)

	if cur.Mode == core.ModeTailing || cur.LastImported%1000 == 0 {
		log.Printf("imported block %d (%d deposits)", cur.LastImported, deposits)
	}

	if hs, ok := in.engine.(core.HeadSetter); ok && cur.LastImported%in.cfg.SetHeadEvery == 0 {
		if err := hs.SetHead(ctx, block.Hash()); err != nil {
			log.Printf("set head at block %d: %v", cur.LastImported, err)
		}
	}
}

// checkCommitments verifies the engine's results against the header's
// sealed state root and receipts root before anything is committed.
func checkCommitments(block *types.Block, res *core.ExecutionResult) error {
	if res.StateRoot != block.Root() {
		return fmt.Errorf("%w: block %d state root %s, header %s",
			ErrResultMismatch, block.NumberU64(), res.StateRoot.Hex(), block.Root().Hex())
	}
	receiptRoot := types.DeriveSha(res.Receipts, trie.NewStackTrie(nil))
	if receiptRoot != block.ReceiptHash() {
		return fmt.Errorf("%w: block %d receipts root %s, header %s",
			ErrResultMismatch, block.NumberU64(), receiptRoot.Hex(), block.ReceiptHash().Hex())
	}
	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, deposit.ErrRevertedDeposit) ||
		errors.Is(err, monitor.ErrDiscontinuity) ||
		errors.Is(err, decode.ErrMalformed) ||
		errors.Is(err, decode.ErrMismatch) ||
		errors.Is(err, ErrResultMismatch) ||
		errors.Is(err, ErrCursorSave)
}

func timeAfter(base time.Duration, attempt int) <-chan time.Time {
	delay := time.Duration(math.Pow(2, float64(attempt))) * base
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return time.After(delay)
}

func setModeMetric(mode core.Mode) {
	if mode == core.ModeTailing {
		metrics.TailingMode.Set(1)
	} else {
		metrics.TailingMode.Set(0)
	}
}
