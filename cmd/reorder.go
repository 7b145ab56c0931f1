package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/choiway/photomerge/imagedate"
	"github.com/choiway/photomerge/photo"
	"github.com/choiway/photomerge/processor"
	"github.com/choiway/photomerge/renamer"
)

var reorderCmd = &cobra.Command{
	Use:   "reorder [TARGET_FOLDER]",
	Short: "Rename the images in a folder in the order they were taken",
	Long: `Renames every image directly inside TARGET_FOLDER (or the configured
target) to NNNN_YYYYMMDD_HHMMSS.ext, oldest first. Nothing is copied.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log := newLogger(cfg)
		defer log.Sync()

		dir := cfg.Target
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			return photo.ErrNoTarget
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		readers, closeReaders := metadataReaders(log)
		defer closeReaders()

		resolver := imagedate.NewResolver(
			imagedate.WithReaders(readers...),
			imagedate.WithFilenameFirst(cfg.FilenameFirst),
			imagedate.WithLogger(log),
		)

		prefix := ""
		if cfg.FlagRandom {
			prefix = cfg.RandomPrefix
		}

		r := renamer.New(resolver, renamer.Options{
			DryRun:       cfg.DryRun,
			RandomPrefix: prefix,
			Extensions:   cfg.Extensions,
		}, log)

		renamed, failures, err := r.ReorderFolder(ctx, dir)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderReport(&processor.Report{
			Target:   dir,
			Renamed:  renamed,
			Failures: failures,
			DryRun:   cfg.DryRun,
		}))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reorderCmd)

	reorderCmd.Flags().BoolP("dryrun", "d", false, "Only show the new names")
	reorderCmd.Flags().Bool("filename-first", false, "Prefer a timestamp in the file name over EXIF data")
	reorderCmd.Flags().Bool("flag-random", false, "Keep the random-name prefix in front of new names")
	reorderCmd.Flags().String("prefix", "web", "Prefix used by --flag-random")
}
