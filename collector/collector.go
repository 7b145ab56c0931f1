// Package collector gathers images from several folders into one target
// folder, copying each distinct file content once.
package collector

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/choiway/photomerge/photo"
)

var randomName = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

type Options struct {
	Target       string
	Extensions   []string
	Workers      int
	FlagRandom   bool
	RandomPrefix string
	DryRun       bool

	// Known holds hashes already present in Target. AddKnown adds to it.
	Known *photo.Set
}

type Collector struct {
	opts Options
	exts map[string]bool
	log  *zap.Logger

	hash func(path string) (string, int64, error)
	copy func(src, dst string) error
}

type Result struct {
	Collected  []photo.Photo
	Duplicates []photo.Photo
	Failures   []photo.Failure
}

type candidate struct {
	path string
	size int64
	hash string
	err  error
}

func New(opts Options, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	if opts.Known == nil {
		opts.Known = photo.NewSet()
	}

	return &Collector{opts: opts, exts: exts, log: log, hash: HashFile, copy: copyFile}
}

// AddKnown hashes files already in the target so content they hold is not
// copied again. Files that cannot be read are logged and skipped.
func (c *Collector) AddKnown(ctx context.Context, paths []string) error {
	candidates := make([]*candidate, 0, len(paths))
	for _, p := range paths {
		candidates = append(candidates, &candidate{path: p})
	}

	if err := c.hashAll(ctx, candidates); err != nil {
		return err
	}

	for _, cand := range candidates {
		if cand.err != nil {
			c.log.Warn("cannot hash existing image", zap.String("path", cand.path), zap.Error(cand.err))
			continue
		}
		c.opts.Known.Insert(cand.hash)
	}

	return nil
}

// Collect walks sources in order and copies every not yet seen image into
// the target folder. The first file with a given content wins.
func (c *Collector) Collect(ctx context.Context, sources []string) (*Result, error) {
	candidates, err := c.walk(ctx, sources)
	if err != nil {
		return nil, err
	}

	c.log.Info("found images", zap.Int("count", len(candidates)), zap.Int("workers", c.opts.Workers))

	if err := c.hashAll(ctx, candidates); err != nil {
		return nil, err
	}

	res := &Result{}
	seen := photo.NewMap()
	reserved := photo.NewSet()

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if cand.err != nil {
			c.log.Warn("hash failed, skipping", zap.String("path", cand.path), zap.Error(cand.err))
			res.Failures = append(res.Failures, photo.Failure{Path: cand.path, Err: cand.err})
			continue
		}

		if first, ok := seen.Get(cand.hash); ok {
			c.log.Debug("skipped duplicate", zap.String("path", cand.path), zap.String("original", first.Path))
			res.Duplicates = append(res.Duplicates, photo.Photo{
				Hash:       cand.hash,
				Size:       cand.size,
				SourcePath: cand.path,
				Path:       first.Path,
				Status:     photo.StatusDuplicate,
			})
			continue
		}

		if c.opts.Known.Check(cand.hash) {
			c.log.Debug("skipped, already in target", zap.String("path", cand.path))
			res.Duplicates = append(res.Duplicates, photo.Photo{
				Hash:       cand.hash,
				Size:       cand.size,
				SourcePath: cand.path,
				Status:     photo.StatusDuplicate,
			})
			continue
		}

		name := filepath.Base(cand.path)
		flagged := false
		if c.opts.FlagRandom && IsRandomName(name) {
			name = c.opts.RandomPrefix + "_" + name
			flagged = true
		}

		target := c.uniqueTarget(name, reserved)
		reserved.Insert(target)

		if !c.opts.DryRun {
			if err := c.copy(cand.path, target); err != nil {
				opErr := &photo.OpError{Op: "collector.copy", Kind: photo.KindCopy, Path: cand.path, Target: target, Err: err}
				c.log.Error("copy failed", zap.Error(opErr))
				res.Failures = append(res.Failures, photo.Failure{Path: cand.path, Err: opErr})
				continue
			}
			c.log.Debug("copied", zap.String("source", cand.path), zap.String("target", target))
		}

		p := photo.Photo{
			Hash:       cand.hash,
			Size:       cand.size,
			SourcePath: cand.path,
			Path:       target,
			Flagged:    flagged,
			Status:     photo.StatusCopied,
		}
		seen.Insert(p)
		res.Collected = append(res.Collected, p)
	}

	return res, nil
}

func (c *Collector) walk(ctx context.Context, sources []string) ([]*candidate, error) {
	var skipDir string
	if c.opts.Target != "" {
		if abs, err := filepath.Abs(c.opts.Target); err == nil {
			skipDir = abs
		}
	}

	var out []*candidate
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, &photo.OpError{Op: "collector.walk", Kind: photo.KindFileAccess, Path: src, Err: err}
		}
		if !info.IsDir() {
			return nil, &photo.OpError{Op: "collector.walk", Kind: photo.KindFileAccess, Path: src, Err: errors.New("not a directory")}
		}

		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if err != nil {
				// unreadable sub directory, keep going with the rest
				c.log.Warn("cannot read", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if skipDir != "" {
					if abs, err := filepath.Abs(path); err == nil && abs == skipDir {
						return fs.SkipDir
					}
				}
				return nil
			}

			if !d.Type().IsRegular() || !c.IsImage(path) {
				return nil
			}

			out = append(out, &candidate{path: path})
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, &photo.OpError{Op: "collector.walk", Kind: photo.KindFileAccess, Path: src, Err: err}
		}
	}

	return out, nil
}

// hashAll fills in hash and size on a bounded pool of workers.
func (c *Collector) hashAll(ctx context.Context, candidates []*candidate) error {
	jobs := make(chan *candidate)

	var wg sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				cand.hash, cand.size, cand.err = c.hash(cand.path)
			}
		}()
	}

	var err error
feed:
	for _, cand := range candidates {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- cand:
		}
	}
	close(jobs)
	wg.Wait()

	return err
}

// IsImage reports whether path has one of the configured extensions.
func (c *Collector) IsImage(path string) bool {
	return c.exts[strings.ToLower(filepath.Ext(path))]
}

// uniqueTarget returns target/name, or target/stem_N.ext for the first N
// that is neither on disk nor already handed out in this run.
func (c *Collector) uniqueTarget(name string, reserved *photo.Set) string {
	target := filepath.Join(c.opts.Target, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for counter := 1; exists(target) || reserved.Check(target); counter++ {
		target = filepath.Join(c.opts.Target, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}

	return target
}

// IsRandomName reports whether the file stem is only letters and digits,
// which is typical of images saved from the web.
func IsRandomName(name string) bool {
	return randomName.MatchString(strings.TrimSuffix(name, filepath.Ext(name)))
}

// HashFile returns the MD5 hex digest and size of path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, &photo.OpError{Op: "collector.hash", Kind: photo.KindFileAccess, Path: path, Err: err}
	}
	defer f.Close()

	h := md5.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, &photo.OpError{Op: "collector.hash", Kind: photo.KindHash, Path: path, Err: err}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), n, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// copyFile copies content, permission bits and modification time. It never
// overwrites an existing file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}

	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
