package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartdoc/policyd/internal/model"
)

var (
	analyticsUser   string
	analyticsWindow string
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Print accuracy and correction analytics for a user's documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initQueryEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Analytics.Calculate(ctx, analyticsUser, model.Window(analyticsWindow))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	analyticsCmd.Flags().StringVar(&analyticsUser, "user", "", "owner user id (empty aggregates all users)")
	analyticsCmd.Flags().StringVar(&analyticsWindow, "window", "month", "time window: day, week, month or all")
	rootCmd.AddCommand(analyticsCmd)
}
