// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"sync"
	"time"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/genesis"
	"github.com/blockylab/blocky/foundation/blockchain/mempool"
	"github.com/blockylab/blocky/foundation/blockchain/peer"
	"github.com/go-resty/resty/v2"
)

// The number of recently observed gossip identities kept to stop
// rebroadcast loops between peers.
const seenCacheSize = 10_000

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and transaction sharing.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(blockTx database.BlockTx)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	BeneficiaryID  database.AccountID
	Host           string
	Storage        database.Storage
	Genesis        genesis.Genesis
	SelectStrategy string
	KnownPeers     *peer.PeerSet
	EvHandler      EventHandler
	Attempts       func(delta uint64)
}

// State manages the blockchain database.
type State struct {
	mu          sync.Mutex
	allowMining bool

	beneficiaryID database.AccountID
	host          string
	evHandler     EventHandler
	attempts      func(delta uint64)

	genesis    genesis.Genesis
	db         *database.Database
	mempool    *mempool.Mempool
	knownPeers *peer.PeerSet
	seen       *peer.SeenSet
	client     *resty.Client

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// The database replays whatever the storage already holds and
	// refuses to start on a chain that doesn't validate.
	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	// The mempool checks admissions against the confirmed state.
	mpool, err := mempool.New(mempool.Config{
		MaxSize:        cfg.Genesis.PoolMaxSize,
		MinTxValue:     cfg.Genesis.MinTxValue,
		AccountBalance: db.BalanceFor,
		TxMined:        db.TransactionExists,
		SelectStrategy: cfg.SelectStrategy,
		EvHandler:      ev,
	})
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	state := State{
		allowMining: true,

		beneficiaryID: cfg.BeneficiaryID,
		host:          cfg.Host,
		evHandler:     ev,
		attempts:      cfg.Attempts,

		genesis:    cfg.Genesis,
		db:         db,
		mempool:    mpool,
		knownPeers: knownPeers,
		seen:       peer.NewSeenSet(seenCacheSize),
		client:     client,
	}

	// The real Worker is not set here. The call to worker.Run will assign
	// itself and start everything up and running for the node.
	state.Worker = noopWorker{}

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the database is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return nil
}

// =============================================================================

// IsMiningAllowed reports whether the node is currently accepting mining
// operations. Mining is paused while a chain replacement is in flight.
func (s *State) IsMiningAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.allowMining
}

// turnMiningOff stops the node from starting new mining operations.
func (s *State) turnMiningOff() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowMining = false
}

// turnMiningOn allows the node to start new mining operations.
func (s *State) turnMiningOn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowMining = true
}

// =============================================================================

// noopWorker stands in until worker.Run registers the real one, so state
// methods can signal unconditionally.
type noopWorker struct{}

func (noopWorker) Shutdown()                         {}
func (noopWorker) Sync()                             {}
func (noopWorker) SignalStartMining()                {}
func (noopWorker) SignalCancelMining() (done func()) { return func() {} }
func (noopWorker) SignalShareTx(tx database.BlockTx) {}
