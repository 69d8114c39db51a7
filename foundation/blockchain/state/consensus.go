package state

import (
	"errors"
	"fmt"

	"github.com/blockylab/blocky/foundation/blockchain/database"
)

// ErrChainTooWeak is returned when a candidate chain does not carry
// strictly more work than the local chain. The candidate is rejected
// before any expensive validation takes place.
var ErrChainTooWeak = errors.New("candidate chain is not stronger than the local chain")

// =============================================================================

// ConsiderChain evaluates a full candidate chain received from a peer
// against the local chain. A candidate that does not carry strictly more
// cumulative work is rejected outright. A stronger candidate is fully
// re-validated from genesis and, if sound, atomically replaces the local
// chain. Local transactions orphaned by the switch go back to the
// mempool when they are still valid under the new chain.
func (s *State) ConsiderChain(blocks []database.Block) error {
	s.evHandler("state: ConsiderChain: started: blocks[%d]", len(blocks))
	defer s.evHandler("state: ConsiderChain: completed")

	candidateWork := database.ChainWork(blocks)

	// The cheap check comes first. Work is a pure function of the
	// headers, so a weaker candidate never costs us a validation walk.
	if localWork := database.ChainWork(s.db.CopyChain()); candidateWork.Cmp(localWork) <= 0 {
		return fmt.Errorf("%w: candidate work [%v] local work [%v]", ErrChainTooWeak, candidateWork, localWork)
	}

	s.evHandler("state: ConsiderChain: candidate is stronger: validating: candidate[%v]", candidateWork)

	if err := s.db.ValidateChain(blocks); err != nil {
		return err
	}

	// Stop any mining in flight. The block being mined extends a chain
	// that is about to disappear.
	s.turnMiningOff()
	defer s.turnMiningOn()

	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: ConsiderChain: signal runMiningOperation to terminate")
		done()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	// The chain may have grown while the candidate was being validated or
	// while mining was being stopped. The comparison must hold against the
	// chain the swap actually replaces, so re-check under the lock.
	localChain := s.db.CopyChain()
	localWork := database.ChainWork(localChain)
	if candidateWork.Cmp(localWork) <= 0 {
		return fmt.Errorf("%w: candidate work [%v] local work [%v]", ErrChainTooWeak, candidateWork, localWork)
	}

	if err := s.db.ReplaceChain(blocks); err != nil {
		return err
	}

	s.evHandler("state: ConsiderChain: chain replaced: height[%d]", len(blocks))

	// Return orphaned local transactions to the mempool. The mempool
	// re-checks each one against the new chain; what no longer holds up
	// is dropped.
	confirmed := make(map[string]bool)
	for _, block := range blocks {
		for _, tx := range block.Trans {
			confirmed[tx.Hash()] = true
		}
	}

	for _, block := range localChain {
		for _, tx := range block.Trans {
			if confirmed[tx.Hash()] {
				continue
			}
			if _, err := s.mempool.Upsert(tx); err != nil {
				s.evHandler("state: ConsiderChain: orphaned tx dropped: %s: %s", tx.Hash(), err)
			}
		}
	}

	s.mempool.DeleteConfirmed(blocks)

	return nil
}
