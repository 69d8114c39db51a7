package cmd

import (
	"fmt"
	"log"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// balanceCmd represents the balance command.
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Query the node for the account's balance",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}
		accountID := database.PublicKeyToAccountID(privateKey.PublicKey)

		var result struct {
			LatestBlock string `json:"latest_block"`
			Uncommitted int    `json:"uncommitted"`
			Accounts    []struct {
				Account string  `json:"account"`
				Name    string  `json:"name"`
				Balance float64 `json:"balance"`
			} `json:"accounts"`
		}

		url := fmt.Sprintf("%s/v1/accounts/list/%s", nodeURL(), accountID)
		resp, err := resty.New().R().SetResult(&result).Get(url)
		if err != nil {
			log.Fatal(err)
		}
		if resp.IsError() {
			log.Fatalf("node returned %s: %s", resp.Status(), resp.String())
		}

		for _, account := range result.Accounts {
			fmt.Printf("account: %s  balance: %f\n", account.Account, account.Balance)
		}
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
