package cmd

import (
	"fmt"
	"log"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	chainID uint16
	to      string
	value   float64
)

// sendCmd represents the send command.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a transaction",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		fromID := database.PublicKeyToAccountID(privateKey.PublicKey)
		toID, err := database.ToAccountID(to)
		if err != nil {
			log.Fatal(err)
		}

		tx, err := database.NewTx(chainID, fromID, toID, value)
		if err != nil {
			log.Fatal(err)
		}

		signedTx, err := tx.Sign(privateKey)
		if err != nil {
			log.Fatal(err)
		}

		url := fmt.Sprintf("%s/v1/tx/submit", nodeURL())
		resp, err := resty.New().R().SetBody(signedTx).Post(url)
		if err != nil {
			log.Fatal(err)
		}
		if resp.IsError() {
			log.Fatalf("node returned %s: %s", resp.Status(), resp.String())
		}

		fmt.Println("tx:", signedTx.Hash())
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Uint16VarP(&chainID, "chain", "c", 1, "Chain id to sign for.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the funds.")
	sendCmd.Flags().Float64VarP(&value, "value", "v", 0, "Value to send.")
}
