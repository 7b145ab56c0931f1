// Package renamer orders images by capture time and renames them to
// NNNN_YYYYMMDD_HHMMSS.ext.
package renamer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/choiway/photomerge/imagedate"
	"github.com/choiway/photomerge/photo"
)

const tmpPrefix = ".photomerge-"

type Options struct {
	DryRun bool

	// RandomPrefix is kept in front of the new name of flagged photos.
	RandomPrefix string

	// Extensions limits ReorderFolder to these lower-case extensions.
	Extensions []string
}

type Renamer struct {
	resolver *imagedate.Resolver
	opts     Options
	log      *zap.Logger
}

type move struct {
	from string
	tmp  string
	to   string
}

func New(resolver *imagedate.Resolver, opts Options, log *zap.Logger) *Renamer {
	if resolver == nil {
		resolver = imagedate.NewResolver()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renamer{resolver: resolver, opts: opts, log: log}
}

// Rename dates every photo, sorts them oldest first and renames each in
// place. Photos that cannot be dated are returned as failures and left
// untouched. Nothing is renamed if a new name would replace a file outside
// the set.
func (r *Renamer) Rename(ctx context.Context, photos []photo.Photo) ([]photo.Photo, []photo.Failure, error) {
	var failures []photo.Failure
	dated := make([]photo.Photo, 0, len(photos))

	for _, p := range photos {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		t, src, err := r.resolver.Resolve(r.datePath(p))
		if err != nil {
			r.log.Warn("cannot date image, skipping", zap.String("path", p.Path), zap.Error(err))
			failures = append(failures, photo.Failure{Path: p.Path, Err: err})
			continue
		}

		p.DateTaken = t
		p.DateSource = src
		dated = append(dated, p)
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].DateTaken.Before(dated[j].DateTaken)
	})

	moves := make([]*move, 0, len(dated))
	for i := range dated {
		p := &dated[i]
		p.FinalPath = filepath.Join(filepath.Dir(p.Path), r.NewName(i+1, p))
		moves = append(moves, &move{from: p.Path, to: p.FinalPath})
	}

	if err := checkConflicts(moves); err != nil {
		return nil, failures, err
	}

	if r.opts.DryRun {
		return dated, failures, nil
	}

	if err := r.apply(moves); err != nil {
		return nil, failures, err
	}

	for i := range dated {
		dated[i].Status = photo.StatusRenamed
		r.log.Debug("renamed", zap.String("from", filepath.Base(dated[i].Path)), zap.String("to", filepath.Base(dated[i].FinalPath)))
	}

	return dated, failures, nil
}

// datePath is the file to read the capture time from. A dry run has not
// copied anything yet, so planned copies are dated from their source.
func (r *Renamer) datePath(p photo.Photo) string {
	if r.opts.DryRun && p.SourcePath != "" {
		if _, err := os.Lstat(p.Path); err != nil {
			return p.SourcePath
		}
	}
	return p.Path
}

// NewName builds the file name for the photo at 1-based position index.
func (r *Renamer) NewName(index int, p *photo.Photo) string {
	base := filepath.Base(p.Path)
	name := fmt.Sprintf("%04d_%s%s", index, imagedate.TimeString(base, p.DateTaken), filepath.Ext(base))
	if p.Flagged && r.opts.RandomPrefix != "" {
		name = r.opts.RandomPrefix + "_" + name
	}
	return name
}

// ReorderFolder renames the images directly inside dir.
func (r *Renamer) ReorderFolder(ctx context.Context, dir string) ([]photo.Photo, []photo.Failure, error) {
	photos, err := r.ListImages(dir)
	if err != nil {
		return nil, nil, err
	}

	r.log.Info("reordering folder", zap.String("dir", dir), zap.Int("images", len(photos)))

	return r.Rename(ctx, photos)
}

// ListImages returns the images directly inside dir in name order. Files
// named with the random-name prefix are marked as flagged.
func (r *Renamer) ListImages(dir string) ([]photo.Photo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &photo.OpError{Op: "renamer.list", Kind: photo.KindFileAccess, Path: dir, Err: err}
	}

	exts := make(map[string]bool, len(r.opts.Extensions))
	for _, e := range r.opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	var photos []photo.Photo
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		if !exts[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		photos = append(photos, photo.Photo{
			Path:    filepath.Join(dir, name),
			Flagged: r.opts.RandomPrefix != "" && strings.HasPrefix(name, r.opts.RandomPrefix+"_"),
		})
	}

	return photos, nil
}

func checkConflicts(moves []*move) error {
	sources := make(map[string]bool, len(moves))
	for _, m := range moves {
		sources[m.from] = true
	}

	for _, m := range moves {
		if m.to == m.from || sources[m.to] {
			continue
		}
		if _, err := os.Lstat(m.to); err == nil {
			return &photo.OpError{Op: "renamer.plan", Kind: photo.KindRename, Path: m.from, Target: m.to,
				Err: fmt.Errorf("target already exists")}
		}
	}

	return nil
}

// apply renames in two passes through unique temporary names so that a new
// name may be the current name of another file in the set.
func (r *Renamer) apply(moves []*move) error {
	var staged []*move

	for _, m := range moves {
		if m.to == m.from {
			continue
		}
		m.tmp = filepath.Join(filepath.Dir(m.from), tmpPrefix+uuid.NewString()+filepath.Ext(m.from))
		if err := os.Rename(m.from, m.tmp); err != nil {
			r.rollback(staged)
			return &photo.OpError{Op: "renamer.stage", Kind: photo.KindRename, Path: m.from, Target: m.tmp, Err: err}
		}
		staged = append(staged, m)
	}

	for i, m := range staged {
		if err := os.Rename(m.tmp, m.to); err != nil {
			r.log.Error("rename failed, restoring original names", zap.String("to", m.to), zap.Error(err))
			r.unstage(staged[:i])
			r.rollback(staged)
			return &photo.OpError{Op: "renamer.rename", Kind: photo.KindRename, Path: m.from, Target: m.to, Err: err}
		}
	}

	return nil
}

// unstage moves already renamed files back to their temporary names so that
// every original name is free again for rollback.
func (r *Renamer) unstage(done []*move) {
	for _, m := range done {
		if err := os.Rename(m.to, m.tmp); err != nil {
			r.log.Error("unstage failed", zap.String("path", m.to), zap.String("tmp", m.tmp), zap.Error(err))
		}
	}
}

func (r *Renamer) rollback(staged []*move) {
	for _, m := range staged {
		if err := os.Rename(m.tmp, m.from); err != nil {
			r.log.Error("rollback failed", zap.String("tmp", m.tmp), zap.String("original", m.from), zap.Error(err))
		}
	}
}
