package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import [roster.xlsx]",
	Short: "Import the merchant roster from a spreadsheet export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := importer.ImportFile(args[0])
		if err != nil {
			return eris.Wrap(err, "import roster")
		}

		for _, m := range result.Merchants {
			if err := st.UpsertMerchant(ctx, m); err != nil {
				return eris.Wrap(err, "import: upsert "+m.ID)
			}
		}

		for _, rej := range result.Rejected {
			zap.L().Warn("roster row rejected",
				zap.Int("row", rej.Row),
				zap.String("reason", rej.Message),
			)
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("imported", len(result.Merchants)),
			zap.Int("rejected", len(result.Rejected)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
