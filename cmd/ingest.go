package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartdoc/policyd/internal/model"
)

var ingestUser string

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf>...",
	Short: "Extract and store one or more policy PDFs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initIngestEnv(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		summaries := make([]model.Summary, 0, len(args))
		for _, path := range args {
			doc, err := env.Ingest.IngestFile(ctx, path, ingestUser)
			if err != nil {
				zap.L().Error("ingest failed", zap.String("path", path), zap.Error(err))
				continue
			}
			summaries = append(summaries, doc.Summarize())
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "owner user id (required)")
	_ = ingestCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(ingestCmd)
}
