package database

import "fmt"

// Storage interface represents the behavior required to be implemented
// by any package providing support for storing and reading the chain.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented
// by any package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// BlockData is the wire and persistence form of a block. It carries the
// hash so a reloaded or received block can be cross-checked against its
// recomputed value.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []BlockTx   `json:"trans"`
}

// NewBlockData constructs the value to serialize or transmit.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Trans,
	}
}

// ToBlock converts a BlockData into a Block, verifying the stored hash
// reproduces from the stored fields.
func ToBlock(blockData BlockData) (Block, error) {
	nb := Block{
		Header: blockData.Header,
		Trans:  blockData.Trans,
	}

	if nb.Hash() != blockData.Hash {
		return Block{}, fmt.Errorf("%w: stored hash [%s] does not reproduce, got [%s]", ErrInvalidProof, blockData.Hash, nb.Hash())
	}

	return nb, nil
}
