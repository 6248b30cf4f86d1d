package monitor

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
)

func makeBlock(n uint64, parent common.Hash) *types.Block {
	header := &types.Header{
		Number:     new(big.Int).SetUint64(n),
		ParentHash: parent,
		Root:       common.HexToHash("0x01"),
		Time:       n,
		Difficulty: big.NewInt(0),
	}
	return types.NewBlock(header, nil, nil, nil, trie.NewStackTrie(nil))
}

func TestGuard_ContinuousChain(t *testing.T) {
	g := NewGuard()

	b1 := makeBlock(1, common.Hash{})
	if err := g.Check(b1); err != nil {
		t.Fatalf("first block should pass an unprimed guard: %v", err)
	}
	g.Accept(b1)

	b2 := makeBlock(2, b1.Hash())
	if err := g.Check(b2); err != nil {
		t.Fatalf("linked block rejected: %v", err)
	}
	g.Accept(b2)

	// Wrong parent
	b3 := makeBlock(3, common.HexToHash("0xdead"))
	if err := g.Check(b3); !errors.Is(err, ErrDiscontinuity) {
		t.Errorf("expected ErrDiscontinuity for wrong parent, got %v", err)
	}

	// Wrong number
	b5 := makeBlock(5, b2.Hash())
	if err := g.Check(b5); !errors.Is(err, ErrDiscontinuity) {
		t.Errorf("expected ErrDiscontinuity for gap, got %v", err)
	}
}

func TestGuard_PrimeFromCursor(t *testing.T) {
	b10 := makeBlock(10, common.HexToHash("0x09"))

	g := NewGuard()
	g.Prime(10, b10.Hash())

	good := makeBlock(11, b10.Hash())
	if err := g.Check(good); err != nil {
		t.Errorf("linked restart block rejected: %v", err)
	}

	bad := makeBlock(11, common.HexToHash("0xbad"))
	if err := g.Check(bad); !errors.Is(err, ErrDiscontinuity) {
		t.Errorf("expected ErrDiscontinuity, got %v", err)
	}
}

func TestGuard_PrimeWithoutHash(t *testing.T) {
	// Cursors written before hash tracking carry a zero hash; the guard
	// must then let the first block through unchecked.
	g := NewGuard()
	g.Prime(10, common.Hash{})

	b := makeBlock(11, common.HexToHash("0x77"))
	if err := g.Check(b); err != nil {
		t.Errorf("expected unchecked pass, got %v", err)
	}
}
