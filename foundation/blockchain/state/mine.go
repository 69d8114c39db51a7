package state

import (
	"context"
	"errors"

	"github.com/blockylab/blocky/foundation/blockchain/database"
)

// ErrMiningOff is returned when a mining operation is requested while the
// node has mining paused for a chain replacement.
var ErrMiningOff = errors.New("mining is turned off")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. An empty mempool still produces a
// block; the proof of work is performed either way and the beneficiary
// collects the reward.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	if !s.IsMiningAllowed() {
		return database.Block{}, ErrMiningOff
	}

	s.evHandler("state: MineNewBlock: MINING: pick best transactions")

	trans := s.mempool.PickBest(s.genesis.TransPerBlock)

	s.evHandler("state: MineNewBlock: MINING: perform POW: txs[%d]", len(trans))

	// Attempt to create a new block by solving the POW puzzle.
	// This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		BeneficiaryID: s.beneficiaryID,
		Difficulty:    s.db.Difficulty(),
		PrevBlock:     s.db.LatestBlock(),
		Trans:         trans,
		EvHandler:     s.evHandler,
		Attempts:      s.attempts,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	if err := s.validateUpdateDatabase(block); err != nil {
		return database.Block{}, err
	}

	s.seen.Observe(block.Hash())

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it,
// and if that passes, writes the block to the chain. A running mining
// operation on the same block number lost the race and is cancelled.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: block[%s]", block.Hash())
	defer s.evHandler("state: ProcessProposedBlock: completed")

	if !s.seen.Observe(block.Hash()) {
		s.evHandler("state: ProcessProposedBlock: already seen: %s", block.Hash())
		return nil
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from
	// the function until done is called. That allows this function to
	// complete its state changes before a new mining operation takes place.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
		done()
	}()

	return s.validateUpdateDatabase(block)
}

// =============================================================================

// validateUpdateDatabase validates the block against the current tip and
// atomically applies it: chain, balances, storage, and mempool stay
// consistent with each other.
func (s *State) validateUpdateDatabase(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: validateUpdateDatabase: write block to chain")

	if err := s.db.Write(block); err != nil {
		return err
	}

	s.evHandler("state: validateUpdateDatabase: remove confirmed txs from mempool")

	s.mempool.DeleteConfirmed([]database.Block{block})

	return nil
}
