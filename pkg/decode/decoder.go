// Package decode parses archival block files. One file holds one canonical
// block (header + body) and its pre-computed receipts, RLP-encoded inside an
// lz4 frame. Decoding is a pure transformation with no side effects.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/pierrec/lz4/v4"
)

var (
	// ErrMalformed indicates the file failed structural decoding.
	ErrMalformed = errors.New("malformed block file")

	// ErrMismatch indicates the embedded block number disagrees with the
	// number under which the file was discovered.
	ErrMismatch = errors.New("block number mismatch")
)

// Envelope is the decoded content of one archival block file.
type Envelope struct {
	Block    *types.Block
	Receipts []*types.Receipt
}

// Block decodes raw file bytes discovered under the given height. It fails
// with ErrMalformed on structural errors and ErrMismatch when the embedded
// header number disagrees with height.
func Block(raw []byte, height uint64) (*Envelope, error) {
	body, err := io.ReadAll(lz4.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: lz4 frame: %v", ErrMalformed, err)
	}

	var env Envelope
	if err := rlp.DecodeBytes(body, &env); err != nil {
		return nil, fmt.Errorf("%w: rlp: %v", ErrMalformed, err)
	}
	if env.Block == nil || env.Block.Header() == nil {
		return nil, fmt.Errorf("%w: missing block", ErrMalformed)
	}
	if got := env.Block.NumberU64(); got != height {
		return nil, fmt.Errorf("%w: file %d carries block %d", ErrMismatch, height, got)
	}
	// Embedded receipts must match the header's sealed receipts root. The
	// driver independently checks the engine's receipts against the same
	// root, so both views are forced to agree.
	if len(env.Receipts) > 0 {
		root := types.DeriveSha(types.Receipts(env.Receipts), trie.NewStackTrie(nil))
		if root != env.Block.ReceiptHash() {
			return nil, fmt.Errorf("%w: block %d embedded receipts root %s, header %s",
				ErrMalformed, height, root.Hex(), env.Block.ReceiptHash().Hex())
		}
	}
	return &env, nil
}

// Encode is the inverse of Block. The ingest pipeline never writes archive
// files; this exists for the example producer and for tests.
func Encode(env *Envelope) ([]byte, error) {
	body, err := rlp.EncodeToBytes(env)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
