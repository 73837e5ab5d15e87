package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var receiptsLimit int

var receiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "List recent batch receipts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("receipts"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		receipts, err := st.ListReceipts(ctx, receiptsLimit)
		if err != nil {
			return eris.Wrap(err, "list receipts")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(receipts)
	},
}

func init() {
	receiptsCmd.Flags().IntVar(&receiptsLimit, "limit", 20, "max receipts to list")
	rootCmd.AddCommand(receiptsCmd)
}
