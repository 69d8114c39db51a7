package selector

import (
	"sort"

	"github.com/blockylab/blocky/foundation/blockchain/database"
)

// feeSelect returns transactions with the best fee first. This is the
// ordering a miner wants: the transactions that pay the most for their
// place in the block.
var feeSelect = func(txs []database.BlockTx, howMany int) []database.BlockTx {
	cpy := make([]database.BlockTx, len(txs))
	copy(cpy, txs)

	sort.Sort(byFee(cpy))

	if howMany == -1 || howMany > len(cpy) {
		howMany = len(cpy)
	}

	return cpy[:howMany]
}
