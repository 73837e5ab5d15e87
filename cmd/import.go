package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <path-or-url>",
	Short: "Import contacts from a CSV or XLSX list",
	Long:  "Imports contacts from a local file or an http(s)/ftp URL. Re-importing the same list is idempotent; opted-out contacts are never resurrected.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source := args[0]

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		im := importer.New(st)

		var result importer.Result
		if strings.Contains(source, "://") {
			result, err = im.ImportURL(ctx, source)
		} else {
			result, err = im.ImportFile(ctx, source)
		}
		if err != nil {
			return eris.Wrapf(err, "import %s", source)
		}

		zap.L().Info("import complete",
			zap.String("source", source),
			zap.Int("rows", result.Rows),
			zap.Int("imported", result.Imported),
			zap.Int("skipped", result.Skipped),
			zap.Int("invalid", result.Invalid),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
