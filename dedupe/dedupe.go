// Package dedupe removes copies that download tools and file managers save
// as "name(1).ext" next to "name.ext".
package dedupe

import (
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/choiway/photomerge/collector"
	"github.com/choiway/photomerge/photo"
)

var copySuffix = regexp.MustCompile(`^(.+)\(\d+\)(\.[^.]+)$`)

type Options struct {
	DryRun bool
	// Verify also requires equal MD5 hashes, not just equal sizes.
	Verify bool
}

type Removal struct {
	Path     string
	Original string
	Size     int64
}

// OriginalName returns the name without the "(N)" copy marker, or false if
// name carries no marker.
func OriginalName(name string) (string, bool) {
	m := copySuffix.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1] + m[2], true
}

// DeleteDuplicates removes every "name(N).ext" in dir whose "name.ext"
// sibling exists with the same size. Sub directories are not visited.
func DeleteDuplicates(dir string, opts Options, log *zap.Logger) ([]Removal, []photo.Failure, error) {
	if log == nil {
		log = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, &photo.OpError{Op: "dedupe.list", Kind: photo.KindFileAccess, Path: dir, Err: err}
	}

	var (
		removed  []Removal
		failures []photo.Failure
	)

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		original, ok := OriginalName(e.Name())
		if !ok {
			continue
		}

		path := filepath.Join(dir, e.Name())
		originalPath := filepath.Join(dir, original)

		info, err := os.Stat(path)
		if err != nil {
			failures = append(failures, photo.Failure{Path: path, Err: err})
			continue
		}
		originalInfo, err := os.Stat(originalPath)
		if err != nil || !originalInfo.Mode().IsRegular() {
			continue
		}
		if info.Size() != originalInfo.Size() {
			continue
		}

		if opts.Verify {
			same, err := sameContent(path, originalPath)
			if err != nil {
				failures = append(failures, photo.Failure{Path: path, Err: err})
				continue
			}
			if !same {
				log.Debug("same size, different content", zap.String("path", path))
				continue
			}
		}

		if !opts.DryRun {
			if err := os.Remove(path); err != nil {
				failures = append(failures, photo.Failure{Path: path,
					Err: &photo.OpError{Op: "dedupe.remove", Kind: photo.KindFileAccess, Path: path, Err: err}})
				continue
			}
			log.Info("deleted duplicate file", zap.String("file", e.Name()))
		}

		removed = append(removed, Removal{Path: path, Original: originalPath, Size: info.Size()})
	}

	return removed, failures, nil
}

func sameContent(a, b string) (bool, error) {
	ha, _, err := collector.HashFile(a)
	if err != nil {
		return false, err
	}
	hb, _, err := collector.HashFile(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}
