package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/username/archflow"
	"github.com/username/archflow/pkg/config"
	"github.com/username/archflow/pkg/core"
	"github.com/username/archflow/pkg/decode"
	"github.com/username/archflow/pkg/deposit"
	"github.com/username/archflow/pkg/spi/archive"
	filestore "github.com/username/archflow/pkg/spi/store/file"
)

// MockEngine implements core.ExecutionEngine for demonstration. It pretends
// every block executed cleanly and reports one deposit transfer in block 2.
type MockEngine struct{}

func (m *MockEngine) Execute(ctx context.Context, block *types.Block) (*core.ExecutionResult, error) {
	var transfers []core.ValueTransfer
	if block.NumberU64() == 2 {
		transfers = append(transfers, core.ValueTransfer{
			From:  deposit.DefaultSystemAddress,
			To:    common.HexToAddress("0xabc0000000000000000000000000000000000001"),
			Value: big.NewInt(1_000_000),
		})
	}
	return &core.ExecutionResult{
		StateRoot: block.Root(),
		Receipts:  nil,
		Transfers: transfers,
	}, nil
}

func (m *MockEngine) Commit(ctx context.Context, record *core.BlockRecord) error {
	fmt.Printf("[Engine] Committed block %d with %d pseudo txs\n",
		record.Block.NumberU64(), len(record.PseudoTxs))
	for _, tx := range record.PseudoTxs {
		fmt.Printf("[Engine]   deposit %s -> %s value %s hash %s\n",
			tx.From.Hex(), tx.To.Hex(), tx.Value, tx.Hash.Hex())
	}
	return nil
}

// writeArchive produces a tiny three-block archive in dir.
func writeArchive(dir *archive.Dir) error {
	parent := common.Hash{}
	for n := uint64(1); n <= 3; n++ {
		header := &types.Header{
			Number:     new(big.Int).SetUint64(n),
			ParentHash: parent,
			Root:       common.HexToHash("0x01"),
			Time:       1700000000 + n,
			Difficulty: big.NewInt(0),
		}
		block := types.NewBlock(header, nil, nil, nil, trie.NewStackTrie(nil))
		parent = block.Hash()

		raw, err := decode.Encode(&decode.Envelope{Block: block})
		if err != nil {
			return err
		}
		path := dir.Path(n)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	// 1. Build a throwaway archive
	root, err := os.MkdirTemp("", "archflow-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(root)

	dir := archive.NewDir(root)
	if err := writeArchive(dir); err != nil {
		log.Fatal(err)
	}

	// 2. Wire the pipeline with a mock engine and a file cursor
	cfg := &config.Config{
		PollInterval:    50 * time.Millisecond,
		MaxPollInterval: 200 * time.Millisecond,
		MaxRetries:      3,
		RetryDelay:      10 * time.Millisecond,
		SetHeadEvery:    100,
	}
	cursors := filestore.NewStore(filepath.Join(root, "cursor.json"))
	ingestor := archflow.New(cfg, dir, &MockEngine{}, cursors)

	// 3. Run. The importer backfills blocks 1-3, flips to tailing, and
	// then waits for block 4 until the timeout cancels it.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ingestor.Run(ctx); err != nil {
		log.Fatal(err)
	}

	cur, err := cursors.Load(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("[Cursor] last imported %d, mode %s\n", cur.LastImported, cur.Mode)
}
