package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartdoc/policyd/internal/export"
)

var (
	exportUser string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's documents to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initQueryEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrap(err, "create export file")
		}

		if err := export.NewService(env.Store).WriteDocuments(ctx, exportUser, f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "close export file")
		}

		zap.L().Info("export written", zap.String("path", exportOut))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportUser, "user", "", "owner user id (required)")
	_ = exportCmd.MarkFlagRequired("user")
	exportCmd.Flags().StringVar(&exportOut, "out", "documents.xlsx", "output file path")
	rootCmd.AddCommand(exportCmd)
}
