package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartdoc/policyd/internal/model"
)

var (
	trendUser   string
	trendWindow string
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Print the daily accuracy trend for a user's documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initQueryEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		points, err := env.Analytics.Trend(ctx, trendUser, model.Window(trendWindow))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	},
}

func init() {
	trendCmd.Flags().StringVar(&trendUser, "user", "", "owner user id (required)")
	_ = trendCmd.MarkFlagRequired("user")
	trendCmd.Flags().StringVar(&trendWindow, "window", "all", "time window: day, week, month or all")
	rootCmd.AddCommand(trendCmd)
}
