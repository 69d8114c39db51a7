package state

import (
	"math/big"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/genesis"
	"github.com/blockylab/blocky/foundation/blockchain/peer"
)

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveLatestBlock returns a copy of the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChain returns a copy of the full chain.
func (s *State) RetrieveChain() []database.Block {
	return s.db.CopyChain()
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// RetrieveMempool returns a copy of the mempool in the select strategy's
// ordering.
func (s *State) RetrieveMempool() []database.BlockTx {
	return s.mempool.PickBest(-1)
}

// =============================================================================

// QueryHeight returns the number of blocks in the chain.
func (s *State) QueryHeight() uint64 {
	return s.db.Height()
}

// QueryDifficulty returns the difficulty the next block must satisfy.
func (s *State) QueryDifficulty() uint {
	return s.db.Difficulty()
}

// QueryChainWork returns the cumulative work the local chain carries.
func (s *State) QueryChainWork() *big.Int {
	return database.ChainWork(s.db.CopyChain())
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryAccounts returns a copy of the replay-derived account balances.
func (s *State) QueryAccounts() map[database.AccountID]database.Account {
	return s.db.CopyAccounts()
}

// QueryBalance returns the balance for the specified account.
func (s *State) QueryBalance(accountID database.AccountID) float64 {
	return s.db.BalanceFor(accountID)
}

// QueryBlocksByNumber returns the set of blocks for the specified range
// of block numbers, inclusive.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	if to == QueryLatest {
		to = s.db.Height()
	}
	return s.db.BlocksByNumber(from, to)
}

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1
