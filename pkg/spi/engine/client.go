// Package engine talks to the external execution engine over its private
// RPC API. The pipeline feeds decoded blocks in and commits augmented
// records back through this interface; it never executes EVM code itself.
package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/username/archflow/pkg/core"
)

// Client implements core.ExecutionEngine using go-ethereum's rpc client
type Client struct {
	rpc *rpc.Client
}

var _ core.ExecutionEngine = (*Client)(nil)
var _ core.HeadSetter = (*Client)(nil)

// Dial creates a new Client connected to the given URL
func Dial(rawurl string) (*Client, error) {
	c, err := rpc.Dial(rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rawurl, err)
	}
	return &Client{rpc: c}, nil
}

type rpcTransfer struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Value    *hexutil.Big   `json:"value"`
	Reverted bool           `json:"reverted"`
}

type rpcExecutionResult struct {
	StateRoot common.Hash      `json:"stateRoot"`
	Receipts  []*types.Receipt `json:"receipts"`
	Transfers []rpcTransfer    `json:"transfers"`
}

type rpcPseudoTx struct {
	Hash        common.Hash    `json:"hash"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Value       *hexutil.Big   `json:"value"`
	Nonce       hexutil.Uint64 `json:"nonce"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
}

// Execute submits the block for execution and returns the genuine results
// plus the ordered transfer trace.
func (c *Client) Execute(ctx context.Context, block *types.Block) (*core.ExecutionResult, error) {
	enc, err := rlp.EncodeToBytes(block)
	if err != nil {
		return nil, err
	}

	var res rpcExecutionResult
	if err := c.rpc.CallContext(ctx, &res, "arch_executeBlock", hexutil.Bytes(enc)); err != nil {
		return nil, fmt.Errorf("execute block %d: %w", block.NumberU64(), err)
	}

	transfers := make([]core.ValueTransfer, len(res.Transfers))
	for i, t := range res.Transfers {
		transfers[i] = core.ValueTransfer{
			From:     t.From,
			To:       t.To,
			Value:    t.Value.ToInt(),
			Reverted: t.Reverted,
		}
	}

	return &core.ExecutionResult{
		StateRoot: res.StateRoot,
		Receipts:  res.Receipts,
		Transfers: transfers,
	}, nil
}

// Commit persists the block record, including the served pseudo-transaction
// view, through the engine's commit path.
func (c *Client) Commit(ctx context.Context, record *core.BlockRecord) error {
	enc, err := rlp.EncodeToBytes(record.Block)
	if err != nil {
		return err
	}

	pseudo := make([]rpcPseudoTx, len(record.PseudoTxs))
	for i, tx := range record.PseudoTxs {
		pseudo[i] = rpcPseudoTx{
			Hash:        tx.Hash,
			From:        tx.From,
			To:          tx.To,
			Value:       (*hexutil.Big)(tx.Value),
			Nonce:       hexutil.Uint64(tx.Nonce),
			BlockNumber: hexutil.Uint64(tx.BlockNumber),
		}
	}

	var committed bool
	err = c.rpc.CallContext(ctx, &committed, "arch_commitBlock",
		hexutil.Bytes(enc), record.ServedReceipts(), pseudo)
	if err != nil {
		return fmt.Errorf("commit block %d: %w", record.Block.NumberU64(), err)
	}
	return nil
}

// SetHead notifies the engine of the current chain tip. Best effort; the
// importer calls it periodically, not per block.
func (c *Client) SetHead(ctx context.Context, hash common.Hash) error {
	var ok bool
	return c.rpc.CallContext(ctx, &ok, "arch_setHead", hash)
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}
