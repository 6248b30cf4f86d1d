package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Mode is the ingestion phase. The pipeline starts in Backfill and flips to
// Tailing exactly once, when it first catches up to the front of the archive.
type Mode string

const (
	ModeBackfill Mode = "backfill"
	ModeTailing  Mode = "tailing"
)

// Cursor tracks ingestion progress. There is exactly one cursor per process,
// owned by the Ingestor and written only after a block is durably committed.
type Cursor struct {
	LastImported uint64      `json:"last_imported"`
	LastHash     common.Hash `json:"last_hash"`
	Mode         Mode        `json:"mode"`
}

// ValueTransfer is one value movement observed in a block's execution trace,
// in the order it occurred during block processing.
type ValueTransfer struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Reverted bool
}

// PseudoTx is a synthesized deposit record with the shape of a transaction.
// It is derived, not canonical: excluded from block-hash/state-root
// computation and included only in the served transaction listings.
type PseudoTx struct {
	Hash        common.Hash
	From        common.Address
	To          common.Address
	Value       *big.Int
	Nonce       uint64 // occurrence index of the transfer within the block
	BlockNumber uint64
}

// ExecutionResult is what the external execution engine returns for one block.
type ExecutionResult struct {
	StateRoot common.Hash
	Receipts  types.Receipts
	Transfers []ValueTransfer
}

// BlockRecord is the unit of commit: the genuine block plus the synthesized
// deposit records to splice into the served views. Header fields (state root,
// receipts root, block hash) always come from genuine execution.
type BlockRecord struct {
	Block          *types.Block
	Receipts       types.Receipts
	PseudoTxs      []*PseudoTx
	PseudoReceipts types.Receipts
}

// ServedReceipts returns the receipt list as it should be served to RPC
// clients and indexers: pseudo receipts first, then the genuine receipts
// unchanged. The ordering mirrors how the archive producer places system
// transactions ahead of user transactions.
func (r *BlockRecord) ServedReceipts() types.Receipts {
	if len(r.PseudoReceipts) == 0 {
		return r.Receipts
	}
	out := make(types.Receipts, 0, len(r.PseudoReceipts)+len(r.Receipts))
	out = append(out, r.PseudoReceipts...)
	out = append(out, r.Receipts...)
	return out
}
