package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartdoc/policyd/internal/model"
)

var documentsUser string

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List a user's ingested documents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initQueryEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		docs, err := env.Store.ListDocuments(ctx, documentsUser)
		if err != nil {
			return err
		}

		summaries := make([]model.Summary, len(docs))
		for i := range docs {
			summaries[i] = docs[i].Summarize()
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	},
}

func init() {
	documentsCmd.Flags().StringVar(&documentsUser, "user", "", "owner user id (required)")
	_ = documentsCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(documentsCmd)
}
