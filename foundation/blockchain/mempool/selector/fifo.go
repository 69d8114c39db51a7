package selector

import (
	"sort"

	"github.com/blockylab/blocky/foundation/blockchain/database"
)

// fifoSelect returns transactions in the order the node received them,
// ignoring what they pay. Useful for keeping a test scenario predictable.
var fifoSelect = func(txs []database.BlockTx, howMany int) []database.BlockTx {
	cpy := make([]database.BlockTx, len(txs))
	copy(cpy, txs)

	sort.Sort(byArrival(cpy))

	if howMany == -1 || howMany > len(cpy) {
		howMany = len(cpy)
	}

	return cpy[:howMany]
}
