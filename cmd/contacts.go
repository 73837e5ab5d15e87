package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
)

var (
	contactsStatus      string
	contactsNeedsReview bool
	contactsLimit       int
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Inspect and manage contacts",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("contacts"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.ContactFilter{Limit: contactsLimit}
		if contactsStatus != "" {
			filter.Status = model.ContactStatus(contactsStatus)
		}
		if contactsNeedsReview {
			needsReview := true
			filter.NeedsReview = &needsReview
		}

		contacts, err := st.ListContacts(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list contacts")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(contacts)
	},
}

var contactsOptOutCmd = &cobra.Command{
	Use:   "opt-out <contact-id>",
	Short: "Opt a contact out and anonymize their PII",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("contacts"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		contact, err := st.GetContact(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "load contact %s", args[0])
		}
		if contact.IsOptedOut() {
			zap.L().Info("contact already opted out", zap.String("contact_id", contact.ID))
			return nil
		}

		contact.OptOut()
		if err := st.SaveContact(ctx, contact); err != nil {
			return eris.Wrap(err, "save contact")
		}

		zap.L().Info("contact opted out", zap.String("contact_id", contact.ID))
		return nil
	},
}

func init() {
	contactsListCmd.Flags().StringVar(&contactsStatus, "status", "", "filter by status (active, inactive, unknown, opted_out, pending_confirmation)")
	contactsListCmd.Flags().BoolVar(&contactsNeedsReview, "needs-review", false, "only contacts flagged for human review")
	contactsListCmd.Flags().IntVar(&contactsLimit, "limit", 100, "max contacts to list")
	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsOptOutCmd)
	rootCmd.AddCommand(contactsCmd)
}
