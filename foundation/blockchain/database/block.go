package database

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/blockylab/blocky/foundation/blockchain/signature"
)

// ErrChainAhead is returned from ValidateBlock when a peer proposes a
// block two or more numbers past our tip. The chains have diverged and a
// full synchronization is required.
var ErrChainAhead = errors.New("peer chain is ahead, resync required")

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64    `json:"number"`          // Block number in the chain.
	PrevBlockHash string    `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64    `json:"timestamp"`       // Time the block was mined.
	BeneficiaryID AccountID `json:"beneficiary"`     // Account receiving the mining reward.
	Difficulty    uint      `json:"difficulty"`      // Number of leading zero hex characters required of the hash.
	TransRoot     string    `json:"trans_root"`      // Hash over the ordered transaction hashes in this block.
	Nonce         uint64    `json:"nonce"`           // Value identified to solve the hash solution.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader
	Trans  []BlockTx
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	BeneficiaryID AccountID
	Difficulty    uint
	PrevBlock     Block
	Trans         []BlockTx
	EvHandler     func(v string, args ...any)
	Attempts      func(delta uint64)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic puzzle. The search observes the context and
// aborts promptly when it is canceled.
func POW(ctx context.Context, args POWArgs) (Block, error) {

	// When mining the first block, the previous block's hash is the
	// zero sentinel.
	prevBlockHash := signature.ZeroHash
	if args.PrevBlock.Header.Number > 0 {
		prevBlockHash = args.PrevBlock.Hash()
	}

	nb := Block{
		Header: BlockHeader{
			Number:        args.PrevBlock.Header.Number + 1,
			PrevBlockHash: prevBlockHash,
			TimeStamp:     uint64(time.Now().UTC().Unix()),
			BeneficiaryID: args.BeneficiaryID,
			Difficulty:    args.Difficulty,
			TransRoot:     TransRoot(args.Trans),
			Nonce:         0, // Will be identified by the POW algorithm.
		},
		Trans: args.Trans,
	}

	if err := nb.performPOW(ctx, args.EvHandler, args.Attempts); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any), attemptsFn func(delta uint64)) error {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	ev("database: performPOW: MINING: started: blk[%d] txs[%d]", b.Header.Number, len(b.Trans))
	defer ev("database: performPOW: MINING: completed")

	// Choose a random starting point for the nonce so independent miners
	// don't walk the same search space.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return err
	}
	b.Header.Nonce = nBig.Uint64()

	// The attempt counter feeds genuine throughput back to the caller so
	// any progress reporting reflects real work, not a fabricated number.
	const reportEvery = 100_000

	var attempts uint64
	for {
		attempts++
		if attempts%reportEvery == 0 {
			ev("database: performPOW: MINING: attempts[%d]", attempts)
			if attemptsFn != nil {
				attemptsFn(reportEvery)
			}
		}

		// Abandon the search when preempted. Cancellation is normal
		// control flow, not an error in the block.
		if ctx.Err() != nil {
			ev("database: performPOW: MINING: CANCELLED")
			if attemptsFn != nil {
				attemptsFn(attempts % reportEvery)
			}
			return ctx.Err()
		}

		hash := b.Hash()
		if !isHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		ev("database: performPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: performPOW: MINING: attempts[%d]", attempts)
		if attemptsFn != nil {
			attemptsFn(attempts % reportEvery)
		}

		return nil
	}
}

// Hash returns the unique hash for the Block. Hashing the header and not
// the whole block is enough: the header commits to the transactions via
// the TransRoot field.
func (b Block) Hash() string {
	if b.Header.Number == 0 {
		return signature.ZeroHash
	}

	return signature.Hash(b.Header)
}

// ValidateBlock validates a block to be included as the next block in
// the chain. Balance and double-spend checks need chain context and are
// performed by the database replay.
func (b Block) ValidateBlock(prevBlock Block, difficulty uint, chainID uint16, ev func(v string, args ...any)) error {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	ev("database: ValidateBlock: blk[%d]: check: chain is not forked", b.Header.Number)

	// The node who sent this block has a chain that is two or more blocks
	// ahead of ours. There has been a fork and a full sync is needed.
	nextNumber := prevBlock.Header.Number + 1
	if b.Header.Number >= nextNumber+2 {
		return ErrChainAhead
	}

	ev("database: ValidateBlock: blk[%d]: check: block number is the next number", b.Header.Number)

	if b.Header.Number != nextNumber {
		return fmt.Errorf("%w: block is not the next number, got %d, exp %d", ErrInvalidLinkage, b.Header.Number, nextNumber)
	}

	ev("database: ValidateBlock: blk[%d]: check: parent hash matches parent block", b.Header.Number)

	prevHash := signature.ZeroHash
	if prevBlock.Header.Number > 0 {
		prevHash = prevBlock.Hash()
	}
	if b.Header.PrevBlockHash != prevHash {
		return fmt.Errorf("%w: parent hash doesn't match, got %s, exp %s", ErrInvalidLinkage, b.Header.PrevBlockHash, prevHash)
	}

	ev("database: ValidateBlock: blk[%d]: check: difficulty and hash solution", b.Header.Number)

	if b.Header.Difficulty != difficulty {
		return fmt.Errorf("%w: wrong difficulty, got %d, exp %d", ErrInvalidProof, b.Header.Difficulty, difficulty)
	}

	if !isHashSolved(b.Header.Difficulty, b.Hash()) {
		return fmt.Errorf("%w: hash [%s] does not meet difficulty %d", ErrInvalidProof, b.Hash(), b.Header.Difficulty)
	}

	if prevBlock.Header.TimeStamp > 0 {
		ev("database: ValidateBlock: blk[%d]: check: timestamp is after parent", b.Header.Number)

		parentTime := time.Unix(int64(prevBlock.Header.TimeStamp), 0)
		blockTime := time.Unix(int64(b.Header.TimeStamp), 0)
		if blockTime.Before(parentTime) {
			return fmt.Errorf("%w: block timestamp is before parent, parent %s, block %s", ErrInvalidLinkage, parentTime, blockTime)
		}
	}

	ev("database: ValidateBlock: blk[%d]: check: trans root matches transactions", b.Header.Number)

	if b.Header.TransRoot != TransRoot(b.Trans) {
		return fmt.Errorf("%w: trans root does not match transactions, got %s, exp %s", ErrInvalidProof, TransRoot(b.Trans), b.Header.TransRoot)
	}

	ev("database: ValidateBlock: blk[%d]: check: transactions verify", b.Header.Number)

	seen := make(map[string]bool, len(b.Trans))
	for _, tx := range b.Trans {
		if err := tx.Validate(chainID); err != nil {
			return err
		}

		hash := tx.Hash()
		if seen[hash] {
			return fmt.Errorf("%w: tx [%s] appears twice in block %d", ErrDuplicateTransaction, hash, b.Header.Number)
		}
		seen[hash] = true
	}

	return nil
}

// TransRoot commits to the ordered set of transactions by hashing their
// identity hashes in order.
func TransRoot(trans []BlockTx) string {
	hashes := make([]string, len(trans))
	for i, tx := range trans {
		hashes[i] = tx.Hash()
	}

	return signature.Hash(hashes)
}

// isHashSolved checks the hash to make sure it complies with the POW
// rules. The hash must carry difficulty leading zero hex characters.
func isHashSolved(difficulty uint, hash string) bool {
	const match = "0x0000000000000000000000000000000000000000000000000000000000000000"

	if len(hash) != 66 || difficulty > MaxDifficulty {
		return false
	}

	return hash[:2+difficulty] == match[:2+difficulty]
}
