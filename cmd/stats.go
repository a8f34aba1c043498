package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartdoc/policyd/internal/monitoring"
)

var statsLookback int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print an extraction-health snapshot across all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initQueryEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := monitoring.NewCollector(env.Store, nil).Collect(ctx, statsLookback)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsLookback, "lookback", 24, "lookback window in hours")
	rootCmd.AddCommand(statsCmd)
}
