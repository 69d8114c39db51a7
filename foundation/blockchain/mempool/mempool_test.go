package mempool_test

import (
	"errors"
	"testing"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/mempool"
	"github.com/blockylab/blocky/foundation/blockchain/mempool/selector"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

const (
	alice = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
	bob   = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	carol = database.AccountID("0xbEE6ACE826eC2DE1B38a1F7BCbe4cBF81B09b761")
)

// newTx fabricates a pending transaction. Admission never verifies
// signatures, so the signature fields can stay zero.
func newTx(from database.AccountID, to database.AccountID, value float64, fee float64, stamp uint64) database.BlockTx {
	return database.BlockTx{
		SignedTx: database.SignedTx{
			Tx: database.Tx{
				ChainID:   1,
				FromID:    from,
				ToID:      to,
				Value:     value,
				TimeStamp: stamp,
			},
		},
		Fee:        fee,
		ReceivedAt: stamp,
	}
}

func balances(m map[database.AccountID]float64) func(database.AccountID) float64 {
	return func(accountID database.AccountID) float64 {
		return m[accountID]
	}
}

// =============================================================================

func Test_Admission(t *testing.T) {
	t.Log("Given the need to police which transactions enter the pool.")
	{
		minedHash := newTx(bob, alice, 5, 0.005, 50).Hash()

		mp, err := mempool.New(mempool.Config{
			MinTxValue:     0.001,
			AccountBalance: balances(map[database.AccountID]float64{alice: 100}),
			TxMined:        func(hash string) bool { return hash == minedHash },
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a mempool: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to construct a mempool.", success)

		if _, err := mp.Upsert(newTx(alice, bob, 0.0004, 0.001, 1)); !errors.Is(err, database.ErrInvalidAmount) {
			t.Fatalf("\t%s\tShould reject a value below the minimum with ErrInvalidAmount: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a value below the minimum with ErrInvalidAmount.", success)

		tx := newTx(alice, bob, 40, 0.04, 1)
		if _, err := mp.Upsert(tx); err != nil {
			t.Fatalf("\t%s\tShould admit a funded transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould admit a funded transaction.", success)

		if _, err := mp.Upsert(tx); !errors.Is(err, database.ErrDuplicateTransaction) {
			t.Fatalf("\t%s\tShould reject a pending duplicate with ErrDuplicateTransaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a pending duplicate with ErrDuplicateTransaction.", success)

		if _, err := mp.Upsert(newTx(bob, alice, 5, 0.005, 50)); !errors.Is(err, database.ErrDuplicateTransaction) {
			t.Fatalf("\t%s\tShould reject an already mined transaction with ErrDuplicateTransaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an already mined transaction with ErrDuplicateTransaction.", success)

		// Alice has 100 confirmed and 40 pending: 70 more exceeds what is
		// left.
		if _, err := mp.Upsert(newTx(alice, bob, 70, 0.07, 2)); !errors.Is(err, database.ErrInsufficientFunds) {
			t.Fatalf("\t%s\tShould reject spend beyond the available balance with ErrInsufficientFunds: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject spend beyond the available balance with ErrInsufficientFunds.", success)

		if _, err := mp.Upsert(newTx(alice, bob, 60, 0.06, 3)); err != nil {
			t.Fatalf("\t%s\tShould admit spend exactly at the available balance: %v", failed, err)
		}
		t.Logf("\t%s\tShould admit spend exactly at the available balance.", success)

		if mp.Count() != 2 {
			t.Fatalf("\t%s\tShould hold two pending transactions: got %d", failed, mp.Count())
		}
		t.Logf("\t%s\tShould hold two pending transactions.", success)
	}
}

func Test_PickBestByFee(t *testing.T) {
	t.Log("Given the need to select transactions in fee priority order.")
	{
		mp, err := mempool.New(mempool.Config{SelectStrategy: selector.StrategyFee})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a mempool: %v", failed, err)
		}

		low := newTx(alice, bob, 10, 0.01, 1)
		high := newTx(bob, alice, 10, 0.09, 2)
		midOld := newTx(carol, bob, 10, 0.05, 3)
		midNew := newTx(carol, alice, 10, 0.05, 9)

		for _, tx := range []database.BlockTx{low, high, midNew, midOld} {
			if _, err := mp.Upsert(tx); err != nil {
				t.Fatalf("\t%s\tShould be able to admit the transaction: %v", failed, err)
			}
		}

		picked := mp.PickBest(3)
		if len(picked) != 3 {
			t.Fatalf("\t%s\tShould pick exactly the requested number: got %d", failed, len(picked))
		}
		t.Logf("\t%s\tShould pick exactly the requested number.", success)

		if picked[0].Hash() != high.Hash() {
			t.Fatalf("\t%s\tShould pick the highest fee first.", failed)
		}
		t.Logf("\t%s\tShould pick the highest fee first.", success)

		if picked[1].Hash() != midOld.Hash() || picked[2].Hash() != midNew.Hash() {
			t.Fatalf("\t%s\tShould break fee ties by the older timestamp.", failed)
		}
		t.Logf("\t%s\tShould break fee ties by the older timestamp.", success)

		if all := mp.PickBest(-1); len(all) != 4 {
			t.Fatalf("\t%s\tShould return everything for -1: got %d", failed, len(all))
		}
		t.Logf("\t%s\tShould return everything for -1.", success)

		if mp.Count() != 4 {
			t.Fatalf("\t%s\tShould leave the pool untouched by selection: got %d", failed, mp.Count())
		}
		t.Logf("\t%s\tShould leave the pool untouched by selection.", success)
	}
}

func Test_PickBestFIFO(t *testing.T) {
	t.Log("Given the need to select transactions in arrival order.")
	{
		mp, err := mempool.New(mempool.Config{SelectStrategy: selector.StrategyFIFO})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a mempool: %v", failed, err)
		}

		first := newTx(alice, bob, 10, 0.01, 5)
		second := newTx(bob, alice, 10, 0.09, 7)
		third := newTx(carol, bob, 10, 0.90, 9)

		for _, tx := range []database.BlockTx{third, first, second} {
			if _, err := mp.Upsert(tx); err != nil {
				t.Fatalf("\t%s\tShould be able to admit the transaction: %v", failed, err)
			}
		}

		picked := mp.PickBest(2)
		if picked[0].Hash() != first.Hash() || picked[1].Hash() != second.Hash() {
			t.Fatalf("\t%s\tShould pick the oldest arrivals regardless of fee.", failed)
		}
		t.Logf("\t%s\tShould pick the oldest arrivals regardless of fee.", success)
	}
}

func Test_Eviction(t *testing.T) {
	t.Log("Given the need to bound the pool and keep the best payers.")
	{
		mp, err := mempool.New(mempool.Config{MaxSize: 2})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a mempool: %v", failed, err)
		}

		cheap := newTx(alice, bob, 10, 0.01, 1)
		rich := newTx(bob, alice, 10, 0.09, 2)
		for _, tx := range []database.BlockTx{cheap, rich} {
			if _, err := mp.Upsert(tx); err != nil {
				t.Fatalf("\t%s\tShould be able to fill the pool: %v", failed, err)
			}
		}

		// A fee that does not beat the worst pending transaction bounces.
		if _, err := mp.Upsert(newTx(carol, alice, 10, 0.01, 3)); !errors.Is(err, mempool.ErrMempoolFull) {
			t.Fatalf("\t%s\tShould bounce a fee that does not beat the worst with ErrMempoolFull: %v", failed, err)
		}
		t.Logf("\t%s\tShould bounce a fee that does not beat the worst with ErrMempoolFull.", success)

		better := newTx(carol, alice, 10, 0.05, 4)
		if _, err := mp.Upsert(better); err != nil {
			t.Fatalf("\t%s\tShould admit a better payer into a full pool: %v", failed, err)
		}
		t.Logf("\t%s\tShould admit a better payer into a full pool.", success)

		if mp.Count() != 2 {
			t.Fatalf("\t%s\tShould stay at capacity after the eviction: got %d", failed, mp.Count())
		}
		t.Logf("\t%s\tShould stay at capacity after the eviction.", success)

		remaining := mp.PickBest(-1)
		for _, tx := range remaining {
			if tx.Hash() == cheap.Hash() {
				t.Fatalf("\t%s\tShould have evicted the worst payer.", failed)
			}
		}
		t.Logf("\t%s\tShould have evicted the worst payer.", success)
	}
}

func Test_DeleteConfirmed(t *testing.T) {
	t.Log("Given the need to drop transactions once they are mined.")
	{
		mp, err := mempool.New(mempool.Config{})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a mempool: %v", failed, err)
		}

		mined := newTx(alice, bob, 10, 0.01, 1)
		waiting := newTx(bob, alice, 10, 0.09, 2)
		for _, tx := range []database.BlockTx{mined, waiting} {
			if _, err := mp.Upsert(tx); err != nil {
				t.Fatalf("\t%s\tShould be able to admit the transaction: %v", failed, err)
			}
		}

		mp.DeleteConfirmed([]database.Block{{Trans: []database.BlockTx{mined}}})

		if mp.Count() != 1 {
			t.Fatalf("\t%s\tShould only drop the confirmed transaction: got %d", failed, mp.Count())
		}
		t.Logf("\t%s\tShould only drop the confirmed transaction.", success)

		if mp.PickBest(-1)[0].Hash() != waiting.Hash() {
			t.Fatalf("\t%s\tShould keep the unconfirmed transaction.", failed)
		}
		t.Logf("\t%s\tShould keep the unconfirmed transaction.", success)

		mp.Truncate()
		if mp.Count() != 0 {
			t.Fatalf("\t%s\tShould be empty after truncation: got %d", failed, mp.Count())
		}
		t.Logf("\t%s\tShould be empty after truncation.", success)
	}
}
