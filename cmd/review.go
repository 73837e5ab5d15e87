package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospectkeeper/internal/review"
	"github.com/sells-group/prospectkeeper/pkg/notion"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Sync the human review queue with Notion",
}

var reviewPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push flagged contacts to the Notion review database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("review"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		queue := review.NewQueue(notion.NewClient(cfg.Notion.Token), st, cfg.Notion.ReviewDB)
		result, err := queue.Push(ctx)
		if err != nil {
			return eris.Wrap(err, "review push")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var reviewPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Apply resolved review items and archive them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("review"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		queue := review.NewQueue(notion.NewClient(cfg.Notion.Token), st, cfg.Notion.ReviewDB)
		result, err := queue.PullResolved(ctx)
		if err != nil {
			return eris.Wrap(err, "review pull")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	reviewCmd.AddCommand(reviewPushCmd)
	reviewCmd.AddCommand(reviewPullCmd)
	rootCmd.AddCommand(reviewCmd)
}
