package state_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/genesis"
	"github.com/blockylab/blocky/foundation/blockchain/state"
	"github.com/blockylab/blocky/foundation/blockchain/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

// fixture wires together everything a node test needs: funded accounts
// and a state over in-memory storage at difficulty 1.
type fixture struct {
	gen      genesis.Genesis
	aliceKey *ecdsa.PrivateKey
	alice    database.AccountID
	bob      database.AccountID
	miner    database.AccountID
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	aliceKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}
	bobKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}
	minerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}

	f := fixture{
		aliceKey: aliceKey,
		alice:    database.PublicKeyToAccountID(aliceKey.PublicKey),
		bob:      database.PublicKeyToAccountID(bobKey.PublicKey),
		miner:    database.PublicKeyToAccountID(minerKey.PublicKey),
	}

	f.gen = genesis.Genesis{
		ChainID:         1,
		Difficulty:      1,
		AdjustEvery:     0,
		IntervalSeconds: 30,
		MiningReward:    10,
		MinTxValue:      0.001,
		FeeRate:         0.001,
		MinFee:          0.001,
		TransPerBlock:   100,
		PoolMaxSize:     1000,
		Balances: map[string]float64{
			string(f.alice): 100,
			string(f.bob):   100,
		},
	}

	return f
}

func (f fixture) newState(t *testing.T, host string) *state.State {
	t.Helper()

	strg, err := memory.New()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct storage: %v", failed, err)
	}

	st, err := state.New(state.Config{
		BeneficiaryID: f.miner,
		Host:          host,
		Storage:       strg,
		Genesis:       f.gen,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}
	t.Cleanup(func() { st.Shutdown() })

	return st
}

func (f fixture) signTx(t *testing.T, to database.AccountID, value float64) database.SignedTx {
	t.Helper()

	tx, err := database.NewTx(f.gen.ChainID, f.alice, to, value)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a tx: %v", failed, err)
	}

	signedTx, err := tx.Sign(f.aliceKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the tx: %v", failed, err)
	}

	return signedTx
}

// =============================================================================

func Test_SubmitAndMine(t *testing.T) {
	t.Log("Given the need to accept a wallet transaction and mine it.")
	{
		f := newFixture(t)
		st := f.newState(t, "localhost:9080")

		if err := st.UpsertWalletTransaction(f.signTx(t, f.bob, 25)); err != nil {
			t.Fatalf("\t%s\tShould accept a signed wallet transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a signed wallet transaction.", success)

		if st.QueryMempoolLength() != 1 {
			t.Fatalf("\t%s\tShould hold the transaction in the mempool: got %d", failed, st.QueryMempoolLength())
		}
		t.Logf("\t%s\tShould hold the transaction in the mempool.", success)

		block, err := st.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		if len(block.Trans) != 1 {
			t.Fatalf("\t%s\tShould include the pending transaction: got %d", failed, len(block.Trans))
		}
		t.Logf("\t%s\tShould include the pending transaction.", success)

		if st.QueryHeight() != 1 {
			t.Fatalf("\t%s\tShould have a height of 1: got %d", failed, st.QueryHeight())
		}
		t.Logf("\t%s\tShould have a height of 1.", success)

		if st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould drain the mempool after mining: got %d", failed, st.QueryMempoolLength())
		}
		t.Logf("\t%s\tShould drain the mempool after mining.", success)

		if got := st.QueryBalance(f.alice); got != 75 {
			t.Fatalf("\t%s\tShould debit the sender: got %f", failed, got)
		}
		t.Logf("\t%s\tShould debit the sender.", success)

		if got := st.QueryBalance(f.miner); got != f.gen.MiningReward {
			t.Fatalf("\t%s\tShould credit the beneficiary: got %f", failed, got)
		}
		t.Logf("\t%s\tShould credit the beneficiary.", success)

		// A rejected submission never reaches the mempool: the sender has
		// 75 left and offers 80.
		if err := st.UpsertWalletTransaction(f.signTx(t, f.bob, 80)); !errors.Is(err, database.ErrInsufficientFunds) {
			t.Fatalf("\t%s\tShould reject an underfunded submission: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an underfunded submission.", success)
	}
}

func Test_MineEmptyMempool(t *testing.T) {
	t.Log("Given the need to mine on demand with no pending transactions.")
	{
		f := newFixture(t)
		st := f.newState(t, "localhost:9080")

		block, err := st.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine an empty block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine an empty block.", success)

		if len(block.Trans) != 0 {
			t.Fatalf("\t%s\tShould carry no transactions: got %d", failed, len(block.Trans))
		}
		t.Logf("\t%s\tShould carry no transactions.", success)

		if got := st.QueryBalance(f.miner); got != f.gen.MiningReward {
			t.Fatalf("\t%s\tShould still credit the mining reward: got %f", failed, got)
		}
		t.Logf("\t%s\tShould still credit the mining reward.", success)
	}
}

func Test_ProcessProposedBlock(t *testing.T) {
	t.Log("Given the need to accept blocks mined by peers.")
	{
		f := newFixture(t)
		stA := f.newState(t, "localhost:9080")
		stB := f.newState(t, "localhost:9180")

		if _, err := stA.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine on the first node: %v", failed, err)
		}
		block := stA.RetrieveLatestBlock()

		if err := stB.ProcessProposedBlock(block); err != nil {
			t.Fatalf("\t%s\tShould accept a peer's valid block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a peer's valid block.", success)

		if stB.QueryHeight() != 1 {
			t.Fatalf("\t%s\tShould advance the chain with the proposed block: got %d", failed, stB.QueryHeight())
		}
		t.Logf("\t%s\tShould advance the chain with the proposed block.", success)

		// The same block arriving again is dropped by the gossip cache.
		if err := stB.ProcessProposedBlock(block); err != nil {
			t.Fatalf("\t%s\tShould silently drop an already seen block: %v", failed, err)
		}
		if stB.QueryHeight() != 1 {
			t.Fatalf("\t%s\tShould not advance the chain twice: got %d", failed, stB.QueryHeight())
		}
		t.Logf("\t%s\tShould silently drop an already seen block.", success)
	}
}

// interposingWorker delivers a valid successor block through the peer
// proposal path at the moment mining is being stopped, modeling a block
// landing while a chain replacement is in flight.
type interposingWorker struct {
	st       *state.State
	block    database.Block
	injected bool
}

func (w *interposingWorker) Shutdown()          {}
func (w *interposingWorker) Sync()              {}
func (w *interposingWorker) SignalStartMining() {}
func (w *interposingWorker) SignalCancelMining() (done func()) {
	if !w.injected {
		w.injected = true
		if err := w.st.ProcessProposedBlock(w.block); err != nil {
			panic(err)
		}
	}
	return func() {}
}
func (w *interposingWorker) SignalShareTx(tx database.BlockTx) {}

func Test_ConsiderChainGrownLocal(t *testing.T) {
	t.Log("Given the need to hold the work comparison against the chain being replaced.")
	{
		f := newFixture(t)
		local := f.newState(t, "localhost:9080")
		remote := f.newState(t, "localhost:9180")

		if _, err := local.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine locally: %v", failed, err)
		}
		for i := 0; i < 2; i++ {
			if _, err := remote.MineNewBlock(context.Background()); err != nil {
				t.Fatalf("\t%s\tShould be able to mine remotely: %v", failed, err)
			}
		}

		// A valid successor for the local chain, held back until the
		// replacement stops mining. Once it lands, the local chain carries
		// the same work as the candidate and the candidate must lose.
		successor, err := database.POW(context.Background(), database.POWArgs{
			BeneficiaryID: f.miner,
			Difficulty:    local.QueryDifficulty(),
			PrevBlock:     local.RetrieveLatestBlock(),
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the successor block: %v", failed, err)
		}
		local.Worker = &interposingWorker{st: local, block: successor}

		if err := local.ConsiderChain(remote.RetrieveChain()); !errors.Is(err, state.ErrChainTooWeak) {
			t.Fatalf("\t%s\tShould reject a candidate the local chain caught up with: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a candidate the local chain caught up with.", success)

		if local.QueryHeight() != 2 {
			t.Fatalf("\t%s\tShould keep the grown local chain: got height %d", failed, local.QueryHeight())
		}
		t.Logf("\t%s\tShould keep the grown local chain.", success)

		if local.RetrieveLatestBlock().Hash() != successor.Hash() {
			t.Fatalf("\t%s\tShould keep the interposed block at the tip.", failed)
		}
		t.Logf("\t%s\tShould keep the interposed block at the tip.", success)
	}
}

func Test_ConsiderChain(t *testing.T) {
	t.Log("Given the need to adopt a stronger chain and reject weaker ones.")
	{
		f := newFixture(t)
		local := f.newState(t, "localhost:9080")
		remote := f.newState(t, "localhost:9180")

		// The local node mines one block carrying a transaction; the
		// remote node mines two empty blocks and so carries more work.
		if err := local.UpsertWalletTransaction(f.signTx(t, f.bob, 25)); err != nil {
			t.Fatalf("\t%s\tShould accept the local transaction: %v", failed, err)
		}
		if _, err := local.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine locally: %v", failed, err)
		}

		for i := 0; i < 2; i++ {
			if _, err := remote.MineNewBlock(context.Background()); err != nil {
				t.Fatalf("\t%s\tShould be able to mine remotely: %v", failed, err)
			}
		}

		// A chain with no more work than our own is rejected outright.
		if err := local.ConsiderChain(local.RetrieveChain()); !errors.Is(err, state.ErrChainTooWeak) {
			t.Fatalf("\t%s\tShould reject a chain of equal work with ErrChainTooWeak: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a chain of equal work with ErrChainTooWeak.", success)

		if err := local.ConsiderChain(remote.RetrieveChain()); err != nil {
			t.Fatalf("\t%s\tShould adopt the stronger chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould adopt the stronger chain.", success)

		if local.QueryHeight() != 2 {
			t.Fatalf("\t%s\tShould carry the adopted chain's height: got %d", failed, local.QueryHeight())
		}
		t.Logf("\t%s\tShould carry the adopted chain's height.", success)

		if got := local.QueryBalance(f.alice); got != 100 {
			t.Fatalf("\t%s\tShould derive balances from the adopted chain: got %f", failed, got)
		}
		t.Logf("\t%s\tShould derive balances from the adopted chain.", success)

		// The transaction the switch orphaned is pending again.
		if local.QueryMempoolLength() != 1 {
			t.Fatalf("\t%s\tShould return the orphaned transaction to the mempool: got %d", failed, local.QueryMempoolLength())
		}
		t.Logf("\t%s\tShould return the orphaned transaction to the mempool.", success)
	}
}
