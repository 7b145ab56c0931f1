/*
Copyright © 2021 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/choiway/photomerge/catalog"
	"github.com/choiway/photomerge/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes photomerge for the current directory",
	Long: `Creates .photomerge/ with a default config.yaml and an empty run catalog.

An existing config file is left alone unless --force is given, in which
case the whole .photomerge directory, catalog included, is recreated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log := newLogger(cfg)
		defer log.Sync()

		force, _ := cmd.Flags().GetBool("force")
		if force {
			log.Info("removing existing settings", zap.String("dir", config.Dir))
			if err := os.RemoveAll(config.Dir); err != nil {
				return err
			}
		}

		if err := os.MkdirAll(config.Dir, 0755); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		path := filepath.Join(config.Dir, config.FileName)

		_, err = os.Stat(path)
		switch {
		case err == nil:
			fmt.Fprintf(out, "Keeping existing %s\n", path)
		case errors.Is(err, fs.ErrNotExist):
			if err := config.Write(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", path)
		default:
			return err
		}

		dbPath := cfg.Catalog.Path
		if force {
			dbPath = filepath.Join(config.Dir, config.CatalogDB)
		}

		store, err := catalog.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Fprintf(out, "Catalog ready at %s\n", dbPath)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Recreate .photomerge from scratch")
}
