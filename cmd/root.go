package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/choiway/photomerge/config"
	"github.com/choiway/photomerge/logger"
)

var (
	// Used for flags.
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "photomerge",
		Short: "Merge, deduplicate and rename photos by the date they were taken",
		Long: `Photomerge is a cli application that gathers images from several folders
into one target folder. It copies each distinct image once, then renames
every image in the target to NNNN_YYYYMMDD_HHMMSS.ext in the order the
photos were taken.

Back up your images before running it against folders you care about.
`,
		SilenceUsage: true,
	}
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"debug":          "debug",
	"target":         "target",
	"dryrun":         "dryrun",
	"workers":        "workers",
	"filename-first": "filename_first",
	"flag-random":    "flag_random",
	"prefix":         "random_prefix",
}

// Execute executes the root command.
func Execute() error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .photomerge/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log at debug level")
}

// loadConfig layers defaults, the config file, PHOTOMERGE_* variables and
// any flags the command defines.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	if err := config.ReadFile(v, cfgFile); err != nil {
		return nil, err
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})

	return config.Load(v)
}

func newLogger(cfg *config.Config) *zap.Logger {
	log, err := logger.New(cfg.Debug)
	if err != nil {
		return zap.NewNop()
	}
	return log
}
