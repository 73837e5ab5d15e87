package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prospectkeeper",
	Short: "B2B contact freshness verification",
	Long:  "Verifies that B2B contacts still hold their recorded roles via tiered checks (email gate, website and profile probes, paid AI research), tracks per-contact economics, and settles batches into receipts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
