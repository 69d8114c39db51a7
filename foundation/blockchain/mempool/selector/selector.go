// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/blockylab/blocky/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFee  = "fee"
	StrategyFIFO = "fifo"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFee:  feeSelect,
	StrategyFIFO: fifoSelect,
}

// Func defines a function that takes the pending transactions and selects
// howMany of them in an order based on the function's strategy. Receiving
// -1 for howMany must return all the transactions in the strategy's
// ordering. Selectors never mutate the slice they are given.
type Func func(txs []database.BlockTx, howMany int) []database.BlockTx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byFee provides sorting support by the transaction fee value. Ties are
// broken by the transaction timestamp so two nodes holding the same pool
// assemble the same block.
type byFee []database.BlockTx

// Len returns the number of transactions in the list.
func (bf byFee) Len() int {
	return len(bf)
}

// Less helps to sort the list by fee in descending order to pick the
// transactions that provide the best reward, oldest first on a tie.
func (bf byFee) Less(i, j int) bool {
	if bf[i].Fee != bf[j].Fee {
		return bf[i].Fee > bf[j].Fee
	}
	return bf[i].TimeStamp < bf[j].TimeStamp
}

// Swap moves transactions in the order of the fee value.
func (bf byFee) Swap(i, j int) {
	bf[i], bf[j] = bf[j], bf[i]
}

// =============================================================================

// byArrival provides sorting support by the time the node first saw the
// transaction.
type byArrival []database.BlockTx

// Len returns the number of transactions in the list.
func (ba byArrival) Len() int {
	return len(ba)
}

// Less helps to sort the list by arrival in ascending order to keep the
// transactions in the order they were received.
func (ba byArrival) Less(i, j int) bool {
	if ba[i].ReceivedAt != ba[j].ReceivedAt {
		return ba[i].ReceivedAt < ba[j].ReceivedAt
	}
	return ba[i].TimeStamp < ba[j].TimeStamp
}

// Swap moves transactions in the order of the arrival value.
func (ba byArrival) Swap(i, j int) {
	ba[i], ba[j] = ba[j], ba[i]
}
