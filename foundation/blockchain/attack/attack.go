// Package attack builds private forks of an existing chain with real
// proof of work. It exists to demonstrate the 51% scenario: a miner with
// enough hash power can rewrite recent history by out-working the honest
// chain from a chosen ancestor.
package attack

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/genesis"
	"github.com/blockylab/blocky/foundation/blockchain/storage/memory"
)

// Config represents what the attacker controls: the chain rules, their
// own mining identity, and optional observability hooks.
type Config struct {
	Genesis       genesis.Genesis
	BeneficiaryID database.AccountID
	EvHandler     func(v string, args ...any)
	Attempts      func(delta uint64)
}

// BuildFork mines a private chain that branches from the honest chain
// after block number forkFrom and keeps mining until it carries strictly
// more cumulative work than the honest chain, plus extend blocks of
// margin. The result is a fully valid chain: every block is mined for
// real against the recomputed difficulty schedule, so a node's fork
// choice has no way to tell it apart from honest work.
func BuildFork(ctx context.Context, cfg Config, honest []database.Block, forkFrom uint64, extend int) ([]database.Block, error) {
	if forkFrom > uint64(len(honest)) {
		return nil, fmt.Errorf("fork point %d is past the honest tip %d", forkFrom, len(honest))
	}
	if extend < 1 {
		extend = 1
	}

	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	// Replay the shared prefix on a scratch database so the difficulty
	// schedule and balances pick up exactly where the honest chain left
	// them at the fork point.
	strg, err := memory.New()
	if err != nil {
		return nil, err
	}
	db, err := database.New(cfg.Genesis, strg, ev)
	if err != nil {
		return nil, err
	}

	for _, block := range honest[:forkFrom] {
		if err := db.Write(block); err != nil {
			return nil, fmt.Errorf("replaying shared prefix: %w", err)
		}
	}

	honestWork := database.ChainWork(honest)

	ev("attack: BuildFork: forkFrom[%d] honestWork[%v]", forkFrom, honestWork)

	// Mine empty blocks until the private chain out-works the honest
	// one. The withheld transactions from the abandoned suffix simply
	// never happened on this history.
	var margin int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		block, err := database.POW(ctx, database.POWArgs{
			BeneficiaryID: cfg.BeneficiaryID,
			Difficulty:    db.Difficulty(),
			PrevBlock:     db.LatestBlock(),
			Trans:         nil,
			EvHandler:     ev,
			Attempts:      cfg.Attempts,
		})
		if err != nil {
			return nil, err
		}

		if err := db.Write(block); err != nil {
			return nil, err
		}

		fork := db.CopyChain()
		if database.ChainWork(fork).Cmp(honestWork) > 0 {
			margin++
			if margin >= extend {
				ev("attack: BuildFork: private chain ready: height[%d] work[%v]", len(fork), database.ChainWork(fork))
				return fork, nil
			}
		}
	}
}

// Execute presents the private fork to the victim's fork choice. A nil
// error means the victim adopted the attacker's history.
func Execute(victim interface{ ConsiderChain([]database.Block) error }, fork []database.Block) error {
	if len(fork) == 0 {
		return errors.New("no fork to present")
	}

	return victim.ConsiderChain(fork)
}
