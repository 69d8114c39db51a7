package public

import (
	"github.com/blockylab/blocky/foundation/blockchain/database"
)

// tx is what the mempool endpoint returns for each pending transaction.
type tx struct {
	From      database.AccountID `json:"from"`
	FromName  string             `json:"from_name"`
	To        database.AccountID `json:"to"`
	ToName    string             `json:"to_name"`
	Value     float64            `json:"value"`
	Fee       float64            `json:"fee"`
	TimeStamp uint64             `json:"timestamp"`
	Sig       string             `json:"sig"`
}

// info describes one account's balance.
type info struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance float64            `json:"balance"`
}

// actInfo is the accounts endpoint response.
type actInfo struct {
	LatestBlock string `json:"latest_block"`
	Uncommitted int    `json:"uncommitted"`
	Accounts    []info `json:"accounts"`
}
