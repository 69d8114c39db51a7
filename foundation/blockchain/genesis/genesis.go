// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// DefaultPath is where the node expects the genesis file to live.
const DefaultPath = "zblock/genesis.json"

// Genesis represents the genesis file.
type Genesis struct {
	Date            time.Time          `json:"date"`
	ChainID         uint16             `json:"chain_id"`         // Unique id for this running chain.
	Difficulty      uint               `json:"difficulty"`       // Leading zero hex characters a block hash must carry.
	AdjustEvery     uint64             `json:"adjust_every"`     // Number of blocks between difficulty adjustments.
	IntervalSeconds uint64             `json:"interval_seconds"` // Target seconds between blocks.
	MiningReward    float64            `json:"mining_reward"`    // Reward credited to the beneficiary per block.
	MinTxValue      float64            `json:"min_tx_value"`     // Smallest transaction value a node accepts.
	FeeRate         float64            `json:"fee_rate"`         // Rate applied to the value for the priority score.
	MinFee          float64            `json:"min_fee"`          // Floor for the fee regardless of the value.
	TransPerBlock   int                `json:"trans_per_block"`  // Maximum number of transactions in a block.
	PoolMaxSize     int                `json:"pool_max_size"`    // Maximum number of transactions held in the mempool.
	Balances        map[string]float64 `json:"balances"`         // Founder balances.
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	if path == "" {
		path = DefaultPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Save writes the genesis information to the specified path. It is used
// by tooling that provisions a new chain.
func (g Genesis) Save(path string) error {
	if path == "" {
		path = DefaultPath
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
