package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ExecutionEngine is the external execution/state-commit collaborator.
// The pipeline never duplicates EVM semantics; it feeds decoded blocks in
// and commits augmented records back through the engine's own commit path.
type ExecutionEngine interface {
	// Execute runs the block against current state and returns the genuine
	// results plus the ordered value-transfer trace.
	Execute(ctx context.Context, block *types.Block) (*ExecutionResult, error)

	// Commit durably persists the block record. Committing the same record
	// twice must be a no-op, so that a crash between Commit and the cursor
	// write is recoverable by re-importing the block.
	Commit(ctx context.Context, record *BlockRecord) error
}

// HeadSetter is optionally implemented by engines that want periodic
// head/finality notifications during ingestion.
type HeadSetter interface {
	SetHead(ctx context.Context, hash common.Hash) error
}
