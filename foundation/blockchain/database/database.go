// Package database maintains the blockchain: the validated sequence of
// blocks, the account balances derived by replaying it, and the active
// difficulty. Storage of blocks is delegated to a Storage implementation.
package database

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/blockylab/blocky/foundation/blockchain/genesis"
)

// Database manages the chain and the state derived from it. It follows a
// single-writer discipline: Write and ReplaceChain take the write lock,
// queries run concurrently against a stable snapshot.
type Database struct {
	mu sync.RWMutex

	genesis   genesis.Genesis
	storage   Storage
	evHandler func(v string, args ...any)

	chain  []Block
	replay *replay
}

// New constructs a new database, applies the genesis balances, and loads
// and re-validates any blocks held by the storage.
func New(gen genesis.Genesis, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	db := Database{
		genesis:   gen,
		storage:   storage,
		evHandler: evHandler,
		replay:    newReplay(gen),
	}

	// Any blocks on disk must replay cleanly or the node refuses to
	// start. Reloading and re-validating must yield the same hashes.
	iter := storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		if err := db.replay.accept(block, evHandler); err != nil {
			return nil, fmt.Errorf("stored block %d: %w", block.Header.Number, err)
		}

		db.chain = append(db.chain, block)
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() {
	db.storage.Close()
}

// =============================================================================

// LatestBlock returns the block at the tip of the chain. A zero value is
// returned when only the genesis state exists.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.chain) == 0 {
		return Block{}
	}
	return db.chain[len(db.chain)-1]
}

// Height returns the number of mined blocks in the chain.
func (db *Database) Height() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return uint64(len(db.chain))
}

// Difficulty returns the difficulty the next block must satisfy.
func (db *Database) Difficulty() uint {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.replay.difficulty
}

// CopyChain returns a copy of the full block sequence.
func (db *Database) CopyChain() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	chain := make([]Block, len(db.chain))
	copy(chain, db.chain)
	return chain
}

// BlocksByNumber returns the blocks numbered from..to inclusive.
func (db *Database) BlocksByNumber(from uint64, to uint64) []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if from < 1 {
		from = 1
	}
	if to > uint64(len(db.chain)) {
		to = uint64(len(db.chain))
	}
	if from > to {
		return nil
	}

	blocks := make([]Block, 0, to-from+1)
	for i := from; i <= to; i++ {
		blocks = append(blocks, db.chain[i-1])
	}
	return blocks
}

// CopyAccounts makes a copy of the current account balances. The
// balances are not stored; they are the result of replaying the chain
// from the genesis state.
func (db *Database) CopyAccounts() map[AccountID]Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[AccountID]Account, len(db.replay.balances))
	for accountID, balance := range db.replay.balances {
		accounts[accountID] = newAccount(accountID, balance)
	}
	return accounts
}

// BalanceFor returns the replay-derived balance for the account.
func (db *Database) BalanceFor(accountID AccountID) float64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.replay.balances[accountID]
}

// TransactionExists reports whether the transaction hash has already
// been mined into the chain.
func (db *Database) TransactionExists(hash string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.replay.seen[hash]
}

// =============================================================================

// Write validates the block against the current tip and, if it passes,
// appends it to the chain, persists it, applies its transactions to the
// balances, and retargets the difficulty at an adjustment boundary.
func (db *Database) Write(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.replay.accept(block, db.evHandler); err != nil {
		return err
	}

	if err := db.storage.Write(NewBlockData(block)); err != nil {
		return err
	}

	db.chain = append(db.chain, block)

	return nil
}

// ValidateChain walks the full candidate sequence from the genesis
// state, verifying every block invariant and every linkage, and returns
// the first failure found. It never trusts prior validation: a foreign
// chain may be internally inconsistent anywhere.
func (db *Database) ValidateChain(blocks []Block) error {
	db.mu.RLock()
	gen := db.genesis
	db.mu.RUnlock()

	r := newReplay(gen)
	for _, block := range blocks {
		if err := r.accept(block, nil); err != nil {
			return fmt.Errorf("block %d: %w", block.Header.Number, err)
		}
	}

	return nil
}

// ReplaceChain swaps the entire local chain for the candidate. The swap
// is all-or-nothing: the candidate is fully re-validated first and any
// failure leaves the current chain untouched.
func (db *Database) ReplaceChain(blocks []Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	r := newReplay(db.genesis)
	for _, block := range blocks {
		if err := r.accept(block, nil); err != nil {
			return fmt.Errorf("block %d: %w", block.Header.Number, err)
		}
	}

	if err := db.storage.Reset(); err != nil {
		return err
	}
	for _, block := range blocks {
		if err := db.storage.Write(NewBlockData(block)); err != nil {
			return err
		}
	}

	chain := make([]Block, len(blocks))
	copy(chain, blocks)

	db.chain = chain
	db.replay = r

	return nil
}

// =============================================================================

// ChainWork computes the cumulative proof-of-work carried by the block
// sequence. Each leading zero hex character multiplies the expected work
// for a block by 16.
func ChainWork(blocks []Block) *big.Int {
	total := big.NewInt(0)
	sixteen := big.NewInt(16)

	for _, block := range blocks {
		work := new(big.Int).Exp(sixteen, big.NewInt(int64(block.Header.Difficulty)), nil)
		total.Add(total, work)
	}

	return total
}

// =============================================================================

// replay carries the state derived from walking a chain from genesis:
// balances, the set of mined transaction hashes, the active difficulty,
// and the first header of the open adjustment period.
type replay struct {
	genesis     genesis.Genesis
	balances    map[AccountID]float64
	seen        map[string]bool
	difficulty  uint
	periodFirst BlockHeader
	prev        Block
}

// newReplay constructs the genesis state.
func newReplay(gen genesis.Genesis) *replay {
	difficulty := gen.Difficulty
	if difficulty < MinDifficulty {
		difficulty = MinDifficulty
	}

	balances := make(map[AccountID]float64, len(gen.Balances))
	for account, balance := range gen.Balances {
		balances[AccountID(account)] = balance
	}

	return &replay{
		genesis:    gen,
		balances:   balances,
		seen:       make(map[string]bool),
		difficulty: difficulty,
	}
}

// accept validates the block as the next block of the replayed chain and
// applies its effects. Any error leaves no partial effects behind for
// Database callers because they discard the replay on failure; for the
// live replay, the balance checks run before any mutation.
func (r *replay) accept(block Block, ev func(v string, args ...any)) error {
	if err := block.ValidateBlock(r.prev, r.difficulty, r.genesis.ChainID, ev); err != nil {
		return err
	}

	// Check every transaction against the chain prefix before applying
	// anything, so a failure can't leave balances half-updated.
	spend := make(map[AccountID]float64)
	for _, tx := range block.Trans {
		if tx.Value < r.genesis.MinTxValue {
			return fmt.Errorf("%w: value [%f] below the chain minimum [%f]", ErrInvalidAmount, tx.Value, r.genesis.MinTxValue)
		}

		hash := tx.Hash()
		if r.seen[hash] {
			return fmt.Errorf("%w: tx [%s] already mined", ErrDoubleSpend, hash)
		}

		spend[tx.FromID] += tx.Value
		if spend[tx.FromID] > r.balances[tx.FromID] {
			return fmt.Errorf("%w: account %s spends %f with balance %f", ErrDoubleSpend, tx.FromID, spend[tx.FromID], r.balances[tx.FromID])
		}
	}

	for _, tx := range block.Trans {
		r.balances[tx.FromID] -= tx.Value
		r.balances[tx.ToID] += tx.Value
		r.seen[tx.Hash()] = true
	}

	r.balances[block.Header.BeneficiaryID] += r.genesis.MiningReward

	// Track the adjustment period and retarget at the boundary.
	adjust := r.genesis.AdjustEvery
	if adjust > 0 {
		if (block.Header.Number-1)%adjust == 0 {
			r.periodFirst = block.Header
		}
		if block.Header.Number%adjust == 0 {
			r.difficulty = Retarget(r.difficulty, r.periodFirst, block.Header, adjust, r.genesis.IntervalSeconds)
		}
	}

	r.prev = block

	return nil
}
