package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospectkeeper/internal/crm"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push verification status to Salesforce",
	Long:  "Links local contacts to Salesforce records by email, creates replacement contacts under their matching Account, and pushes verification status in bulk.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		result, err := crm.NewSyncer(sf, st).Sync(ctx)
		if err != nil {
			return eris.Wrap(err, "salesforce sync")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
