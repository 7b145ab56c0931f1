package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/choiway/photomerge/photo"
)

var backupCmd = &cobra.Command{
	Use:   "backup [DIR]",
	Short: "Upload a folder to S3 compatible storage",
	Long: `Uploads every file below DIR (default: the configured target) to the
configured bucket. Credentials come from PHOTOMERGE_S3_ACCESS_KEY_ID and
PHOTOMERGE_S3_SECRET_ACCESS_KEY or the usual AWS environment.`,
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

		return uploadFolder(ctx, cfg, dir, log, cmd)
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
