package cmd

import (
	"fmt"
	"log"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// accountCmd represents the account command.
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the account address for the configured private key",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println("account:", database.PublicKeyToAccountID(privateKey.PublicKey))
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
}
