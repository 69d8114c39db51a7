package database_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/genesis"
	"github.com/blockylab/blocky/foundation/blockchain/signature"
	"github.com/blockylab/blocky/foundation/blockchain/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

// testChain holds the keys and genesis used across the chain tests. The
// difficulty is 1 so the proof of work completes in a handful of attempts.
type testChain struct {
	gen      genesis.Genesis
	aliceKey *ecdsa.PrivateKey
	bobKey   *ecdsa.PrivateKey
	alice    database.AccountID
	bob      database.AccountID
	minerKey *ecdsa.PrivateKey
	miner    database.AccountID
}

func newTestChain(t *testing.T) testChain {
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

	tc := testChain{
		aliceKey: aliceKey,
		bobKey:   bobKey,
		minerKey: minerKey,
		alice:    database.PublicKeyToAccountID(aliceKey.PublicKey),
		bob:      database.PublicKeyToAccountID(bobKey.PublicKey),
		miner:    database.PublicKeyToAccountID(minerKey.PublicKey),
	}

	tc.gen = genesis.Genesis{
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
			string(tc.alice): 100,
			string(tc.bob):   100,
		},
	}

	return tc
}

// signTx builds and signs a transaction between the two parties.
func (tc testChain) signTx(t *testing.T, key *ecdsa.PrivateKey, to database.AccountID, value float64) database.BlockTx {
	t.Helper()

	from := database.PublicKeyToAccountID(key.PublicKey)
	tx, err := database.NewTx(tc.gen.ChainID, from, to, value)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a tx: %v", failed, err)
	}

	signedTx, err := tx.Sign(key)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the tx: %v", failed, err)
	}

	return database.NewBlockTx(signedTx, database.Fee(value, tc.gen.FeeRate, tc.gen.MinFee))
}

func newStorage(t *testing.T) *memory.Memory {
	t.Helper()

	strg, err := memory.New()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct storage: %v", failed, err)
	}

	return strg
}

// mine performs real proof of work for the next block of the database.
func mine(t *testing.T, db *database.Database, beneficiary database.AccountID, trans []database.BlockTx) database.Block {
	t.Helper()

	block, err := database.POW(context.Background(), database.POWArgs{
		BeneficiaryID: beneficiary,
		Difficulty:    db.Difficulty(),
		PrevBlock:     db.LatestBlock(),
		Trans:         trans,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

// =============================================================================

func Test_WriteBlocks(t *testing.T) {
	t.Log("Given the need to mine blocks and derive balances by replay.")
	{
		tc := newTestChain(t)

		db, err := database.New(tc.gen, newStorage(t), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a database: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to construct a database.", success)

		tx := tc.signTx(t, tc.aliceKey, tc.bob, 25)
		block := mine(t, db, tc.miner, []database.BlockTx{tx})

		if err := db.Write(block); err != nil {
			t.Fatalf("\t%s\tShould be able to write the mined block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to write the mined block.", success)

		if h := db.Height(); h != 1 {
			t.Fatalf("\t%s\tShould have a height of 1: got %d", failed, h)
		}
		t.Logf("\t%s\tShould have a height of 1.", success)

		if got := db.BalanceFor(tc.alice); got != 75 {
			t.Fatalf("\t%s\tShould debit the sender: got %f, exp 75", failed, got)
		}
		t.Logf("\t%s\tShould debit the sender.", success)

		if got := db.BalanceFor(tc.bob); got != 125 {
			t.Fatalf("\t%s\tShould credit the receiver: got %f, exp 125", failed, got)
		}
		t.Logf("\t%s\tShould credit the receiver.", success)

		if got := db.BalanceFor(tc.miner); got != tc.gen.MiningReward {
			t.Fatalf("\t%s\tShould credit the beneficiary the mining reward: got %f, exp %f", failed, got, tc.gen.MiningReward)
		}
		t.Logf("\t%s\tShould credit the beneficiary the mining reward.", success)

		if !db.TransactionExists(tx.Hash()) {
			t.Fatalf("\t%s\tShould report the mined transaction as existing.", failed)
		}
		t.Logf("\t%s\tShould report the mined transaction as existing.", success)

		// An empty block is still valid: mining proceeds with or without
		// pending transactions.
		empty := mine(t, db, tc.miner, nil)
		if err := db.Write(empty); err != nil {
			t.Fatalf("\t%s\tShould be able to write an empty block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to write an empty block.", success)

		if got := db.BalanceFor(tc.miner); got != 2*tc.gen.MiningReward {
			t.Fatalf("\t%s\tShould credit the reward for the empty block: got %f", failed, got)
		}
		t.Logf("\t%s\tShould credit the reward for the empty block.", success)
	}
}

func Test_Reload(t *testing.T) {
	t.Log("Given the need to rebuild state from stored blocks on startup.")
	{
		tc := newTestChain(t)
		storage := newStorage(t)

		db, err := database.New(tc.gen, storage, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a database: %v", failed, err)
		}

		tx := tc.signTx(t, tc.aliceKey, tc.bob, 10)
		if err := db.Write(mine(t, db, tc.miner, []database.BlockTx{tx})); err != nil {
			t.Fatalf("\t%s\tShould be able to write the mined block: %v", failed, err)
		}

		db2, err := database.New(tc.gen, storage, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reload from the same storage: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to reload from the same storage.", success)

		if db2.Height() != db.Height() {
			t.Fatalf("\t%s\tShould reload the same height: got %d, exp %d", failed, db2.Height(), db.Height())
		}
		t.Logf("\t%s\tShould reload the same height.", success)

		if db2.LatestBlock().Hash() != db.LatestBlock().Hash() {
			t.Fatalf("\t%s\tShould reload the same tip hash.", failed)
		}
		t.Logf("\t%s\tShould reload the same tip hash.", success)

		if db2.BalanceFor(tc.bob) != db.BalanceFor(tc.bob) {
			t.Fatalf("\t%s\tShould reload the same balances.", failed)
		}
		t.Logf("\t%s\tShould reload the same balances.", success)
	}
}

func Test_DoubleSpend(t *testing.T) {
	t.Log("Given the need to reject replayed and overdrawn transactions.")
	{
		tc := newTestChain(t)

		db, err := database.New(tc.gen, newStorage(t), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a database: %v", failed, err)
		}

		tx := tc.signTx(t, tc.aliceKey, tc.bob, 25)
		if err := db.Write(mine(t, db, tc.miner, []database.BlockTx{tx})); err != nil {
			t.Fatalf("\t%s\tShould be able to write the first block: %v", failed, err)
		}

		// The identical transaction mined a second time is a replay.
		replayBlock := mine(t, db, tc.miner, []database.BlockTx{tx})
		if err := db.Write(replayBlock); !errors.Is(err, database.ErrDoubleSpend) {
			t.Fatalf("\t%s\tShould reject a replayed transaction with ErrDoubleSpend: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a replayed transaction with ErrDoubleSpend.", success)

		if got := db.BalanceFor(tc.alice); got != 75 {
			t.Fatalf("\t%s\tShould leave balances untouched after the rejection: got %f", failed, got)
		}
		t.Logf("\t%s\tShould leave balances untouched after the rejection.", success)

		// Two transactions that individually fit but together exceed the
		// balance must be rejected as a block. The values differ so the
		// transactions have distinct identities.
		tx1 := tc.signTx(t, tc.bobKey, tc.alice, 80)
		tx2 := tc.signTx(t, tc.bobKey, tc.alice, 75)
		overdraw := mine(t, db, tc.miner, []database.BlockTx{tx1, tx2})
		if err := db.Write(overdraw); !errors.Is(err, database.ErrDoubleSpend) {
			t.Fatalf("\t%s\tShould reject cumulative overspend with ErrDoubleSpend: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject cumulative overspend with ErrDoubleSpend.", success)

		// A value below the chain minimum never makes it into a block.
		dust := tc.signTx(t, tc.aliceKey, tc.bob, 0.0004)
		dustBlock := mine(t, db, tc.miner, []database.BlockTx{dust})
		if err := db.Write(dustBlock); !errors.Is(err, database.ErrInvalidAmount) {
			t.Fatalf("\t%s\tShould reject a dust transaction with ErrInvalidAmount: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a dust transaction with ErrInvalidAmount.", success)
	}
}

func Test_ValidateBlock(t *testing.T) {
	t.Log("Given the need to reject malformed blocks before they join the chain.")
	{
		tc := newTestChain(t)

		db, err := database.New(tc.gen, newStorage(t), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a database: %v", failed, err)
		}

		if err := db.Write(mine(t, db, tc.miner, nil)); err != nil {
			t.Fatalf("\t%s\tShould be able to write the first block: %v", failed, err)
		}

		good := mine(t, db, tc.miner, nil)

		wrongNumber := good
		wrongNumber.Header.Number = 5
		if err := db.Write(wrongNumber); !errors.Is(err, database.ErrChainAhead) {
			t.Fatalf("\t%s\tShould signal a resync for a block far ahead: %v", failed, err)
		}
		t.Logf("\t%s\tShould signal a resync for a block far ahead.", success)

		skipped := good
		skipped.Header.Number++
		if err := db.Write(skipped); err == nil {
			t.Fatalf("\t%s\tShould reject a block that skips a number.", failed)
		}
		t.Logf("\t%s\tShould reject a block that skips a number.", success)

		wrongParent := good
		wrongParent.Header.PrevBlockHash = "0x0000000000000000000000000000000000000000000000000000000000000042"
		if err := db.Write(wrongParent); !errors.Is(err, database.ErrInvalidLinkage) {
			t.Fatalf("\t%s\tShould reject a block with the wrong parent hash: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a block with the wrong parent hash.", success)

		wrongDiff := good
		wrongDiff.Header.Difficulty = 2
		if err := db.Write(wrongDiff); !errors.Is(err, database.ErrInvalidProof) {
			t.Fatalf("\t%s\tShould reject a block mined at the wrong difficulty: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a block mined at the wrong difficulty.", success)

		tamperedTrans := good
		tamperedTrans.Trans = []database.BlockTx{tc.signTx(t, tc.aliceKey, tc.bob, 5)}
		if err := db.Write(tamperedTrans); !errors.Is(err, database.ErrInvalidProof) {
			t.Fatalf("\t%s\tShould reject a block whose transactions don't match the root: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a block whose transactions don't match the root.", success)

		if err := db.Write(good); err != nil {
			t.Fatalf("\t%s\tShould accept the untampered block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the untampered block.", success)
	}
}

func Test_ReplaceChain(t *testing.T) {
	t.Log("Given the need to validate and adopt a foreign chain atomically.")
	{
		tc := newTestChain(t)

		db, err := database.New(tc.gen, newStorage(t), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a database: %v", failed, err)
		}

		// Build a foreign chain of two blocks against a scratch database
		// sharing the same genesis.
		foreign, err := database.New(tc.gen, newStorage(t), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a scratch database: %v", failed, err)
		}
		for i := 0; i < 2; i++ {
			if err := foreign.Write(mine(t, foreign, tc.bob, nil)); err != nil {
				t.Fatalf("\t%s\tShould be able to grow the foreign chain: %v", failed, err)
			}
		}
		candidate := foreign.CopyChain()

		if err := db.ValidateChain(candidate); err != nil {
			t.Fatalf("\t%s\tShould validate a well formed foreign chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould validate a well formed foreign chain.", success)

		tampered := make([]database.Block, len(candidate))
		copy(tampered, candidate)
		tampered[0].Header.BeneficiaryID = tc.alice
		if err := db.ValidateChain(tampered); err == nil {
			t.Fatalf("\t%s\tShould reject a chain with a tampered block.", failed)
		}
		t.Logf("\t%s\tShould reject a chain with a tampered block.", success)

		if err := db.ReplaceChain(candidate); err != nil {
			t.Fatalf("\t%s\tShould be able to replace the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to replace the chain.", success)

		if db.Height() != 2 {
			t.Fatalf("\t%s\tShould carry the foreign chain's height: got %d", failed, db.Height())
		}
		t.Logf("\t%s\tShould carry the foreign chain's height.", success)

		if got := db.BalanceFor(tc.bob); got != 100+2*tc.gen.MiningReward {
			t.Fatalf("\t%s\tShould derive balances from the adopted chain: got %f", failed, got)
		}
		t.Logf("\t%s\tShould derive balances from the adopted chain.", success)
	}
}

// =============================================================================

func Test_Retarget(t *testing.T) {
	first := func(ts uint64) database.BlockHeader { return database.BlockHeader{TimeStamp: ts} }

	tests := []struct {
		name    string
		current uint
		actual  uint64
		exp     uint
	}{
		{"raise when period is over four times too fast", 3, 70, 4},
		{"lower when period is over four times too slow", 3, 1300, 2},
		{"hold inside the ratio", 3, 290, 3},
		{"hold at the floor", database.MinDifficulty, 5000, database.MinDifficulty},
		{"hold at the ceiling", database.MaxDifficulty, 70, database.MaxDifficulty},
	}

	t.Log("Given the need to retarget the difficulty from period timing.")
	{
		// A period of 10 blocks at 30 seconds targets 300 seconds.
		const adjustEvery = 10
		const intervalSeconds = 30

		for testID, tt := range tests {
			got := database.Retarget(tt.current, first(1000), first(1000+tt.actual), adjustEvery, intervalSeconds)
			if got != tt.exp {
				t.Fatalf("\t%s\tTest %d:\tShould %s: got %d, exp %d", failed, testID, tt.name, got, tt.exp)
			}
			t.Logf("\t%s\tTest %d:\tShould %s.", success, testID, tt.name)
		}
	}
}

func Test_UnsatisfiableDifficulty(t *testing.T) {
	t.Log("Given the need to fail a difficulty past the hash length cleanly.")
	{
		block := database.Block{
			Header: database.BlockHeader{
				Number:        1,
				PrevBlockHash: signature.ZeroHash,
				TimeStamp:     uint64(time.Now().UTC().Unix()),
				Difficulty:    database.MaxDifficulty + 1,
			},
		}

		err := block.ValidateBlock(database.Block{}, database.MaxDifficulty+1, 1, nil)
		if !errors.Is(err, database.ErrInvalidProof) {
			t.Fatalf("\t%s\tShould reject an unsatisfiable difficulty with ErrInvalidProof: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an unsatisfiable difficulty with ErrInvalidProof.", success)
	}
}

func Test_ChainWork(t *testing.T) {
	t.Log("Given the need to compare chains by cumulative proof of work.")
	{
		blockAt := func(difficulty uint) database.Block {
			return database.Block{Header: database.BlockHeader{Number: 1, Difficulty: difficulty}}
		}

		// One block at difficulty 2 carries the work of 16 blocks at
		// difficulty 1 and outweighs 10 of them.
		heavy := []database.Block{blockAt(2)}
		long := make([]database.Block, 10)
		for i := range long {
			long[i] = blockAt(1)
		}

		if database.ChainWork(heavy).Cmp(database.ChainWork(long)) <= 0 {
			t.Fatalf("\t%s\tShould weigh one high difficulty block over many low ones.", failed)
		}
		t.Logf("\t%s\tShould weigh one high difficulty block over many low ones.", success)

		if database.ChainWork(long[:5]).Cmp(database.ChainWork(long)) >= 0 {
			t.Fatalf("\t%s\tShould weigh a longer chain over its prefix at equal difficulty.", failed)
		}
		t.Logf("\t%s\tShould weigh a longer chain over its prefix at equal difficulty.", success)

		if database.ChainWork(nil).Sign() != 0 {
			t.Fatalf("\t%s\tShould report zero work for an empty chain.", failed)
		}
		t.Logf("\t%s\tShould report zero work for an empty chain.", success)
	}
}
