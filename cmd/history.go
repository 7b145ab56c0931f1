package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent merge runs from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log := newLogger(cfg)
		defer log.Sync()

		limit, _ := cmd.Flags().GetInt("limit")

		store, _, closer, err := openCatalog(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer closer.Close()

		runs, err := store.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
}
