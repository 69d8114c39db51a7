// Package mempool maintains the pool of pending transactions waiting to
// be mined into a block.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/mempool/selector"
)

// ErrMempoolFull is returned when the pool is at capacity and the
// submitted transaction does not pay enough to displace a pending one.
var ErrMempoolFull = errors.New("mempool is full")

// Config represents the set of dependencies and policy the mempool needs.
type Config struct {
	MaxSize        int                                 // Maximum number of pending transactions. Zero means unbounded.
	MinTxValue     float64                             // Smallest value the pool admits.
	AccountBalance func(database.AccountID) float64    // Confirmed balance lookup.
	TxMined        func(hash string) bool              // Reports whether the hash is already in the chain.
	SelectStrategy string                              // Ordering for selection and eviction.
	EvHandler      func(v string, args ...any)         // Optional event stream.
}

// Mempool represents a cache of pending transactions keyed by their
// identity hash. Admission enforces the value floor and checks the
// confirmed balance net of what the account already has pending.
type Mempool struct {
	mu       sync.RWMutex
	cfg      Config
	pool     map[string]database.BlockTx
	selectFn selector.Func
}

// New constructs a new mempool using the fee select strategy.
func New(cfg Config) (*Mempool, error) {
	if cfg.SelectStrategy == "" {
		cfg.SelectStrategy = selector.StrategyFee
	}

	selectFn, err := selector.Retrieve(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	if cfg.EvHandler == nil {
		cfg.EvHandler = func(v string, args ...any) {}
	}

	mp := Mempool{
		cfg:      cfg,
		pool:     make(map[string]database.BlockTx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert admits a transaction into the pool. The transaction must be
// above the value floor, not a duplicate of anything pending or mined,
// and covered by the sender's confirmed balance net of what the sender
// already has pending. When the pool is full, the transaction must pay
// more than the worst pending transaction, which is evicted.
func (mp *Mempool) Upsert(tx database.BlockTx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if tx.Value < mp.cfg.MinTxValue {
		return 0, fmt.Errorf("%w: value [%f] below the chain minimum [%f]", database.ErrInvalidAmount, tx.Value, mp.cfg.MinTxValue)
	}

	hash := tx.Hash()
	if _, exists := mp.pool[hash]; exists {
		return 0, fmt.Errorf("%w: tx [%s] already pending", database.ErrDuplicateTransaction, hash)
	}
	if mp.cfg.TxMined != nil && mp.cfg.TxMined(hash) {
		return 0, fmt.Errorf("%w: tx [%s] already mined", database.ErrDuplicateTransaction, hash)
	}

	// The sender must be able to fund this transaction on top of
	// everything they already have pending, or mining would produce an
	// invalid block.
	if mp.cfg.AccountBalance != nil {
		available := mp.cfg.AccountBalance(tx.FromID) - mp.pendingFor(tx.FromID)
		if tx.Value > available {
			return 0, fmt.Errorf("%w: account %s has %f available, needs %f", database.ErrInsufficientFunds, tx.FromID, available, tx.Value)
		}
	}

	if mp.cfg.MaxSize > 0 && len(mp.pool) >= mp.cfg.MaxSize {
		if err := mp.evictFor(tx); err != nil {
			return 0, err
		}
	}

	mp.pool[hash] = tx

	return len(mp.pool), nil
}

// Delete removes a transaction from the pool.
func (mp *Mempool) Delete(tx database.BlockTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, tx.Hash())
}

// DeleteConfirmed removes every transaction that appears in the
// specified blocks. Called after a block is accepted or the chain is
// replaced so the pool only holds work still to be done.
func (mp *Mempool) DeleteConfirmed(blocks []database.Block) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, block := range blocks {
		for _, tx := range block.Trans {
			delete(mp.pool, tx.Hash())
		}
	}
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.BlockTx)
}

// PickBest uses the configured select strategy to return the next set of
// transactions for a block. The transactions stay in the pool until they
// are confirmed; -1 returns everything in the strategy's ordering.
func (mp *Mempool) PickBest(howMany int) []database.BlockTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.selectFn(mp.copyLocked(), howMany)
}

// Copy returns a snapshot of the pending transactions in no particular
// order.
func (mp *Mempool) Copy() []database.BlockTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.copyLocked()
}

// =============================================================================

// pendingFor sums the value the account already has waiting in the pool.
func (mp *Mempool) pendingFor(accountID database.AccountID) float64 {
	var total float64
	for _, tx := range mp.pool {
		if tx.FromID == accountID {
			total += tx.Value
		}
	}

	return total
}

// evictFor makes room for the incoming transaction by dropping the worst
// pending one, provided the incoming transaction actually beats it.
func (mp *Mempool) evictFor(tx database.BlockTx) error {
	ordered := mp.selectFn(mp.copyLocked(), -1)
	if len(ordered) == 0 {
		return nil
	}

	worst := ordered[len(ordered)-1]
	if tx.Fee <= worst.Fee {
		return fmt.Errorf("%w: fee [%f] does not beat the lowest pending fee [%f]", ErrMempoolFull, tx.Fee, worst.Fee)
	}

	mp.cfg.EvHandler("mempool: evictFor: dropping tx [%s] fee [%f] for tx [%s] fee [%f]", worst.Hash(), worst.Fee, tx.Hash(), tx.Fee)
	delete(mp.pool, worst.Hash())

	return nil
}

// copyLocked snapshots the pool. Callers must hold at least a read lock.
func (mp *Mempool) copyLocked() []database.BlockTx {
	txs := make([]database.BlockTx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}

	return txs
}
