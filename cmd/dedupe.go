package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choiway/photomerge/dedupe"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe DIR",
	Short: `Delete "name(1).jpg" style copies that match "name.jpg"`,
	Long: `Deletes files in DIR named like 1543675753021(1).jpg when
1543675753021.jpg exists next to them with the same size.
Sub directories are not visited.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log := newLogger(cfg)
		defer log.Sync()

		verify, _ := cmd.Flags().GetBool("verify")

		removed, failures, err := dedupe.DeleteDuplicates(args[0], dedupe.Options{DryRun: cfg.DryRun, Verify: verify}, log)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		verb := "Deleted"
		if cfg.DryRun {
			verb = "Would delete"
		}
		for _, r := range removed {
			fmt.Fprintf(out, "%s duplicate file: %s\n", verb, r.Path)
		}
		for _, f := range failures {
			fmt.Fprintf(out, "Failed: %s: %v\n", f.Path, f.Err)
		}
		fmt.Fprintf(out, "%s %d files\n", verb, len(removed))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)

	dedupeCmd.Flags().BoolP("dryrun", "d", false, "Only list the files that would be deleted")
	dedupeCmd.Flags().Bool("verify", false, "Also compare file contents before deleting")
}
