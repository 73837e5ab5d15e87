package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/verify"
)

var (
	verifyMode        string
	verifyConcurrency int
	verifyBatchSize   int
	verifyContactID   string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run a verification batch",
	Long:  "Verifies contact freshness through the tier ladder and settles the batch into a receipt. Use --contact to verify a single contact.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if verifyMode != "" {
			cfg.Verify.Mode = verifyMode
		}
		if verifyConcurrency > 0 {
			cfg.Verify.Concurrency = verifyConcurrency
		}
		if verifyBatchSize > 0 {
			cfg.Verify.BatchSize = verifyBatchSize
		}
		if err := cfg.Validate("verify"); err != nil {
			return err
		}
		mode, err := verify.ParseMode(cfg.Verify.Mode)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		contacts, err := st.GetContactsForVerification(ctx, cfg.Verify.BatchSize)
		if err != nil {
			return eris.Wrap(err, "load contacts")
		}
		if verifyContactID != "" {
			found := false
			for _, c := range contacts {
				if c.ID == verifyContactID {
					contacts = contacts[:0]
					contacts = append(contacts, c)
					found = true
					break
				}
			}
			if !found {
				contact, err := st.GetContact(ctx, verifyContactID)
				if err != nil {
					return eris.Wrapf(err, "load contact %s", verifyContactID)
				}
				contacts = contacts[:0]
				contacts = append(contacts, *contact)
			}
		}
		if len(contacts) == 0 {
			zap.L().Info("no contacts eligible for verification")
			return nil
		}

		gateways, err := initGateways(mode)
		if err != nil {
			return err
		}

		var sink verify.Sink
		if cfg.Verify.WebhookURL != "" {
			sink = verify.NewWebhookSink(cfg.Verify.WebhookURL)
		}

		engine := verify.NewEngine(gateways)
		orch := verify.NewOrchestrator(st, engine, sink, cfg.Verify.Concurrency)

		result, err := orch.Run(ctx, contacts, mode)
		if err != nil {
			return eris.Wrap(err, "batch run")
		}

		for _, line := range result.Errors {
			zap.L().Warn("contact failed", zap.String("detail", line))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Receipt)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyMode, "mode", "", "verification mode: confirm or research (default from config)")
	verifyCmd.Flags().IntVar(&verifyConcurrency, "concurrency", 0, "worker count, clamped to [1,20] (default from config)")
	verifyCmd.Flags().IntVar(&verifyBatchSize, "batch-size", 0, "max contacts per run (default from config)")
	verifyCmd.Flags().StringVar(&verifyContactID, "contact", "", "verify a single contact by ID")
	rootCmd.AddCommand(verifyCmd)
}
