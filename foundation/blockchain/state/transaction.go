package state

import (
	"github.com/blockylab/blocky/foundation/blockchain/database"
)

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion
// into the blockchain: validates the signature and the core fields, prices
// the fee, admits it to the mempool, and asks the network and the miner to
// pick it up.
func (s *State) UpsertWalletTransaction(signedTx database.SignedTx) error {
	s.evHandler("state: UpsertWalletTransaction: started: %s", signedTx)
	defer s.evHandler("state: UpsertWalletTransaction: completed")

	if err := signedTx.Validate(s.genesis.ChainID); err != nil {
		return err
	}

	fee := database.Fee(signedTx.Value, s.genesis.FeeRate, s.genesis.MinFee)
	tx := database.NewBlockTx(signedTx, fee)

	n, err := s.mempool.Upsert(tx)
	if err != nil {
		return err
	}
	s.evHandler("state: UpsertWalletTransaction: mempool[%d]", n)

	s.seen.Observe(tx.Hash())

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}

// UpsertNodeTransaction accepts a transaction shared by another node. The
// transaction was admitted to the peer's mempool but every node re-checks
// everything for itself. Transactions seen before are dropped without
// being forwarded again.
func (s *State) UpsertNodeTransaction(tx database.BlockTx) error {
	s.evHandler("state: UpsertNodeTransaction: started: %s", tx)
	defer s.evHandler("state: UpsertNodeTransaction: completed")

	if !s.seen.Observe(tx.Hash()) {
		s.evHandler("state: UpsertNodeTransaction: already seen: %s", tx.Hash())
		return nil
	}

	if err := tx.Validate(s.genesis.ChainID); err != nil {
		return err
	}

	// Price the fee locally. A peer's opinion of the fee doesn't bind us.
	tx.Fee = database.Fee(tx.Value, s.genesis.FeeRate, s.genesis.MinFee)

	n, err := s.mempool.Upsert(tx)
	if err != nil {
		return err
	}
	s.evHandler("state: UpsertNodeTransaction: mempool[%d]", n)

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}
