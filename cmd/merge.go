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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/choiway/photomerge/backup"
	"github.com/choiway/photomerge/catalog"
	"github.com/choiway/photomerge/config"
	"github.com/choiway/photomerge/imagedate"
	"github.com/choiway/photomerge/processor"
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge [SOURCE...]",
	Short: "Collect images from source folders into the target and rename them",
	Long: `Walks every source folder, copies each distinct image into the target
folder once and renames all images in the target by capture time.

photomerge merge --target ~/Pictures/merged ~/phone ~/camera

Sources can also come from the config file or PHOTOMERGE_SOURCES.`,
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringP("target", "t", "", "Folder the images are merged into")
	mergeCmd.Flags().BoolP("dryrun", "d", false, "Only report what would be copied and renamed")
	mergeCmd.Flags().IntP("workers", "w", config.OptimalWorkers(), "Number of files hashed in parallel")
	mergeCmd.Flags().Bool("filename-first", false, "Prefer a timestamp in the file name over EXIF data")
	mergeCmd.Flags().Bool("flag-random", false, "Prefix images with random letter and digit names")
	mergeCmd.Flags().String("prefix", "web", "Prefix used by --flag-random")
	mergeCmd.Flags().Bool("no-catalog", false, "Do not read or write the run catalog")
	mergeCmd.Flags().Bool("backup", false, "Upload the target folder to S3 when done")
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := args
	if len(sources) == 0 {
		sources = cfg.Sources
	}

	noCatalog, _ := cmd.Flags().GetBool("no-catalog")
	withBackup, _ := cmd.Flags().GetBool("backup")

	readers, closeReaders := metadataReaders(log)
	defer closeReaders()

	options := []processor.Option{
		processor.WithLogger(log),
		processor.WithReaders(readers...),
	}

	switch {
	case !cfg.Catalog.Enabled || noCatalog:
	case cfg.DryRun:
		// a dry run only reads known hashes
		store, err := catalog.OpenReadOnly(cfg.Catalog.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err == nil {
			defer store.Close()
			options = append(options, processor.WithKnownHashes(store.KnownHashes))
		}
	default:
		store, recorder, closer, err := openCatalog(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closer.Close()

		options = append(options,
			processor.WithRecorder(recorder),
			processor.WithKnownHashes(store.KnownHashes),
		)
	}

	p := processor.New(processor.Options{
		Extensions:    cfg.Extensions,
		Workers:       cfg.Workers,
		FilenameFirst: cfg.FilenameFirst,
		FlagRandom:    cfg.FlagRandom,
		RandomPrefix:  cfg.RandomPrefix,
		DryRun:        cfg.DryRun,
	}, options...)

	p.AddObserver(processor.ObserverFunc(func(event processor.Event, data any) {
		log.Debug("event", zap.String("event", string(event)), zap.Any("data", data))
	}))

	for _, s := range sources {
		p.AddFolder(s)
	}
	p.SelectTarget(cfg.Target)

	if cfg.DryRun {
		log.Info("doing dry run")
	}

	report, err := p.Process(ctx)
	if report != nil {
		fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
	}
	if err != nil {
		return err
	}

	if withBackup && !cfg.DryRun {
		return uploadFolder(ctx, cfg, report.Target, log, cmd)
	}

	return nil
}

// metadataReaders returns goexif plus exiftool when the binary is installed.
func metadataReaders(log *zap.Logger) ([]imagedate.Reader, func()) {
	readers := []imagedate.Reader{imagedate.ExifReader{}}

	et, err := imagedate.NewExiftoolReader()
	if err != nil {
		log.Debug("exiftool not available, using goexif only", zap.Error(err))
		return readers, func() {}
	}

	return append(readers, et), func() {
		if err := et.Close(); err != nil {
			log.Debug("closing exiftool", zap.Error(err))
		}
	}
}

func uploadFolder(ctx context.Context, cfg *config.Config, dir string, log *zap.Logger, cmd *cobra.Command) error {
	u, err := backup.NewS3Uploader(ctx, cfg.S3, log)
	if err != nil {
		return err
	}

	uploads, err := u.UploadDir(ctx, dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d files to s3://%s/%s\n", len(uploads), cfg.S3.Bucket, cfg.S3.Prefix)

	return nil
}
