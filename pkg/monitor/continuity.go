package monitor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrDiscontinuity indicates a decoded block does not link to the previously
// imported one. An archive has no reorgs, so this is corruption of the
// archive or of our cursor, and ingestion must halt rather than skip.
var ErrDiscontinuity = errors.New("parent hash discontinuity")

// Guard verifies that imported blocks form one continuous chain. Unlike a
// live-chain monitor it keeps no reorg window; a single header is enough.
type Guard struct {
	mu     sync.Mutex
	have   bool
	number uint64
	hash   common.Hash
}

func NewGuard() *Guard {
	return &Guard{}
}

// Prime seeds the guard from the persisted cursor so the first block after a
// restart is checked against the last committed one.
func (g *Guard) Prime(number uint64, hash common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if hash == (common.Hash{}) {
		// Cursor predates hash tracking; skip the first-link check.
		return
	}
	g.have = true
	g.number = number
	g.hash = hash
}

// Check verifies the block links to the last accepted one.
func (g *Guard) Check(block *types.Block) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.have {
		return nil
	}
	if block.NumberU64() != g.number+1 {
		return fmt.Errorf("%w: have %d, got block %d", ErrDiscontinuity, g.number, block.NumberU64())
	}
	if block.ParentHash() != g.hash {
		return fmt.Errorf("%w: block %d parent %s, expected %s",
			ErrDiscontinuity, block.NumberU64(), block.ParentHash().Hex(), g.hash.Hex())
	}
	return nil
}

// Accept records the block as the new chain tip after it was committed.
func (g *Guard) Accept(block *types.Block) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.have = true
	g.number = block.NumberU64()
	g.hash = block.Hash()
}
