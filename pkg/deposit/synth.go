// Package deposit materializes system deposit transfers as pseudo
// transactions. Deposits arrive as implicit value transfers from the fixed
// bridge address; downstream explorers and indexers only look at transaction
// lists, so every such transfer is surfaced as a synthetic transaction and
// receipt. Synthesis is a pure derivation over the execution trace and never
// touches the genuine results or the block's cryptographic commitments.
package deposit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/username/archflow/pkg/core"
)

// DefaultSystemAddress is the bridge address system deposits originate from.
var DefaultSystemAddress = common.HexToAddress("0x2222222222222222222222222222222222222222")

// ErrRevertedDeposit is returned when the engine reports a failed system
// transfer. Deposits cannot revert by construction, so this is an invariant
// violation, never swallowed.
var ErrRevertedDeposit = errors.New("system deposit transfer reverted")

// Synthesizer derives pseudo transactions from a block's transfer trace.
type Synthesizer struct {
	system common.Address
}

func NewSynthesizer(system common.Address) *Synthesizer {
	return &Synthesizer{system: system}
}

// hashPreimage pins down the fields the pseudo-transaction hash commits to.
// Re-importing the same block must yield byte-identical hashes.
type hashPreimage struct {
	BlockNumber uint64
	Index       uint64
	From        common.Address
	To          common.Address
	Value       *big.Int
}

// Hash returns the deterministic identifier of the index-th deposit in the
// given block.
func Hash(blockNumber, index uint64, from, to common.Address, value *big.Int) common.Hash {
	enc, err := rlp.EncodeToBytes(&hashPreimage{
		BlockNumber: blockNumber,
		Index:       index,
		From:        from,
		To:          to,
		Value:       value,
	})
	if err != nil {
		// All fields are fixed-shape RLP-encodable types.
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// Synthesize scans the ordered transfer trace of one block and returns the
// pseudo transactions and matching receipts for every value transfer leaving
// the system address, in occurrence order. A block with no deposits yields
// (nil, nil, nil).
func (s *Synthesizer) Synthesize(blockNumber uint64, transfers []core.ValueTransfer) ([]*core.PseudoTx, types.Receipts, error) {
	var (
		txs      []*core.PseudoTx
		receipts types.Receipts
	)

	for _, t := range transfers {
		if t.From != s.system || t.To == s.system {
			continue
		}
		if t.Reverted {
			return nil, nil, fmt.Errorf("%w: block %d, %s -> %s value %s",
				ErrRevertedDeposit, blockNumber, t.From.Hex(), t.To.Hex(), t.Value)
		}

		index := uint64(len(txs))
		value := new(big.Int).Set(t.Value)
		tx := &core.PseudoTx{
			Hash:        Hash(blockNumber, index, t.From, t.To, value),
			From:        t.From,
			To:          t.To,
			Value:       value,
			Nonce:       index,
			BlockNumber: blockNumber,
		}

		// Receipt is always success with zero gas: the deposit already
		// happened during genuine execution, the receipt only makes it
		// visible to transaction-keyed tooling.
		receipt := &types.Receipt{
			Type:              types.LegacyTxType,
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: 0,
			TxHash:            tx.Hash,
			BlockNumber:       new(big.Int).SetUint64(blockNumber),
			TransactionIndex:  uint(index),
		}

		txs = append(txs, tx)
		receipts = append(receipts, receipt)
	}

	return txs, receipts, nil
}
