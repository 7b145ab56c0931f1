// Package processor runs a full merge: collect and deduplicate images from
// the source folders, rename them by capture time and record the run.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/choiway/photomerge/catalog"
	"github.com/choiway/photomerge/collector"
	"github.com/choiway/photomerge/imagedate"
	"github.com/choiway/photomerge/photo"
	"github.com/choiway/photomerge/renamer"
)

type Event string

const (
	EventSourceFoldersUpdated Event = "source_folders_updated"
	EventTargetFolderUpdated  Event = "target_folder_updated"
	EventCollectionCompleted  Event = "collection_completed"
	EventRenamingCompleted    Event = "renaming_completed"
	EventProcessingCompleted  Event = "processing_completed"
)

// Observer is told about folder changes and processing milestones.
type Observer interface {
	Update(event Event, data any)
}

// ObserverFunc adapts a function to Observer. Use the func returned by
// AddObserver to remove one.
type ObserverFunc func(event Event, data any)

func (f ObserverFunc) Update(event Event, data any) { f(event, data) }

type Options struct {
	Extensions    []string
	Workers       int
	FilenameFirst bool
	FlagRandom    bool
	RandomPrefix  string
	DryRun        bool
}

type Report struct {
	Target     string
	RunID      string
	Collected  []photo.Photo
	Duplicates []photo.Photo
	Renamed    []photo.Photo
	Failures   []photo.Failure
	DryRun     bool
	Elapsed    time.Duration
}

type ImageProcessor struct {
	mu        sync.Mutex
	sources   []string
	target    string
	observers []observerEntry
	nextID    int

	opts     Options
	readers  []imagedate.Reader
	recorder catalog.Recorder
	known    func(ctx context.Context, target string) (*photo.Set, error)
	log      *zap.Logger
}

type observerEntry struct {
	id int
	o  Observer
}

type Option func(*ImageProcessor)

// WithRecorder stores the run and every photo through rec.
func WithRecorder(rec catalog.Recorder) Option {
	return func(p *ImageProcessor) { p.recorder = rec }
}

// WithKnownHashes skips content that lookup says is already in the target.
func WithKnownHashes(lookup func(ctx context.Context, target string) (*photo.Set, error)) Option {
	return func(p *ImageProcessor) { p.known = lookup }
}

// WithReaders sets the metadata readers used to date images.
func WithReaders(readers ...imagedate.Reader) Option {
	return func(p *ImageProcessor) { p.readers = readers }
}

func WithLogger(log *zap.Logger) Option {
	return func(p *ImageProcessor) {
		if log != nil {
			p.log = log
		}
	}
}

func New(opts Options, options ...Option) *ImageProcessor {
	p := &ImageProcessor{opts: opts, log: zap.NewNop()}
	for _, o := range options {
		o(p)
	}
	return p
}

// AddObserver registers o and returns a func that removes it again.
func (p *ImageProcessor) AddObserver(o Observer) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.observers = append(p.observers, observerEntry{id: id, o: o})

	return func() { p.removeObserver(func(e observerEntry) bool { return e.id == id }) }
}

// RemoveObserver removes the first registration of o. Values that cannot be
// compared, such as ObserverFunc, are ignored.
func (p *ImageProcessor) RemoveObserver(o Observer) {
	if o == nil || !reflect.TypeOf(o).Comparable() {
		return
	}
	p.removeObserver(func(e observerEntry) bool { return e.o == o })
}

func (p *ImageProcessor) removeObserver(match func(observerEntry) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.observers {
		if match(e) {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			return
		}
	}
}

func (p *ImageProcessor) notify(event Event, data any) {
	p.mu.Lock()
	observers := make([]Observer, 0, len(p.observers))
	for _, e := range p.observers {
		observers = append(observers, e.o)
	}
	p.mu.Unlock()

	for _, o := range observers {
		o.Update(event, data)
	}
}

// AddFolder appends a source folder. Empty and repeated paths are ignored.
func (p *ImageProcessor) AddFolder(folder string) {
	p.mu.Lock()
	if folder == "" {
		p.mu.Unlock()
		return
	}
	for _, s := range p.sources {
		if s == folder {
			p.mu.Unlock()
			return
		}
	}
	p.sources = append(p.sources, folder)
	sources := p.sourcesLocked()
	p.mu.Unlock()

	p.notify(EventSourceFoldersUpdated, sources)
}

// RemoveFolder drops the source at index. Out of range indexes are ignored.
func (p *ImageProcessor) RemoveFolder(index int) {
	p.mu.Lock()
	if index < 0 || index >= len(p.sources) {
		p.mu.Unlock()
		return
	}
	p.sources = append(p.sources[:index], p.sources[index+1:]...)
	sources := p.sourcesLocked()
	p.mu.Unlock()

	p.notify(EventSourceFoldersUpdated, sources)
}

// Sources returns a copy of the source folder list.
func (p *ImageProcessor) Sources() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sourcesLocked()
}

func (p *ImageProcessor) sourcesLocked() []string {
	return append([]string(nil), p.sources...)
}

func (p *ImageProcessor) SelectTarget(folder string) {
	p.mu.Lock()
	p.target = folder
	p.mu.Unlock()

	p.notify(EventTargetFolderUpdated, folder)
}

func (p *ImageProcessor) Target() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Process collects, deduplicates and renames. Per-file problems end up in
// Report.Failures; only setup, cancellation, rename conflicts and catalog
// errors are returned.
func (p *ImageProcessor) Process(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	sources := p.sourcesLocked()
	target := p.target
	p.mu.Unlock()

	if len(sources) == 0 {
		return nil, photo.ErrNoSources
	}
	if target == "" {
		return nil, photo.ErrNoTarget
	}

	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}

	start := time.Now()
	report := &Report{Target: target, DryRun: p.opts.DryRun}

	if !p.opts.DryRun {
		if err := os.MkdirAll(target, 0755); err != nil {
			return nil, &photo.OpError{Op: "processor.target", Kind: photo.KindFileAccess, Path: target, Err: err}
		}
	}

	var known *photo.Set
	if p.known != nil {
		var err error
		known, err = p.known(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("load known hashes: %w", err)
		}
	}

	var run *catalog.Run
	if p.recorder != nil && !p.opts.DryRun {
		run = catalog.NewRun(target)
		if err := p.recorder.StartRun(ctx, run); err != nil {
			return nil, fmt.Errorf("start run: %w", err)
		}
		report.RunID = run.UUID
	}

	err := p.process(ctx, sources, target, known, report)

	if run != nil {
		status := catalog.RunCompleted
		if err == nil {
			err = p.record(ctx, run, report)
		}
		if err != nil {
			status = catalog.RunFailed
		}
		// the run context may already be cancelled
		if ferr := p.recorder.FinishRun(context.Background(), run, status); ferr != nil && err == nil {
			err = fmt.Errorf("finish run: %w", ferr)
		}
	}

	report.Elapsed = time.Since(start)

	if err != nil {
		return report, err
	}

	p.notify(EventProcessingCompleted, report)

	return report, nil
}

func (p *ImageProcessor) process(ctx context.Context, sources []string, target string, known *photo.Set, report *Report) error {
	resolverOpts := []imagedate.Option{
		imagedate.WithFilenameFirst(p.opts.FilenameFirst),
		imagedate.WithLogger(p.log),
	}
	if len(p.readers) > 0 {
		resolverOpts = append(resolverOpts, imagedate.WithReaders(p.readers...))
	}

	prefix := ""
	if p.opts.FlagRandom {
		prefix = p.opts.RandomPrefix
	}
	r := renamer.New(imagedate.NewResolver(resolverOpts...), renamer.Options{
		DryRun:       p.opts.DryRun,
		RandomPrefix: prefix,
		Extensions:   p.opts.Extensions,
	}, p.log)

	existing, err := p.existingImages(r, target)
	if err != nil {
		return err
	}

	c := collector.New(collector.Options{
		Target:       target,
		Extensions:   p.opts.Extensions,
		Workers:      p.opts.Workers,
		FlagRandom:   p.opts.FlagRandom,
		RandomPrefix: p.opts.RandomPrefix,
		DryRun:       p.opts.DryRun,
		Known:        known,
	}, p.log)

	paths := make([]string, 0, len(existing))
	for _, ph := range existing {
		paths = append(paths, ph.Path)
	}
	if err := c.AddKnown(ctx, paths); err != nil {
		return err
	}

	collected, err := c.Collect(ctx, sources)
	if err != nil {
		return err
	}

	report.Collected = collected.Collected
	report.Duplicates = collected.Duplicates
	report.Failures = append(report.Failures, collected.Failures...)

	p.log.Info("collection completed",
		zap.Int("collected", len(collected.Collected)),
		zap.Int("duplicates", len(collected.Duplicates)))
	p.notify(EventCollectionCompleted, len(collected.Collected))

	// images already in the target are numbered together with the new ones
	toRename := append(append([]photo.Photo(nil), collected.Collected...), existing...)

	renamed, failures, err := r.Rename(ctx, toRename)
	if err != nil {
		return err
	}
	report.Renamed = renamed
	report.Failures = append(report.Failures, failures...)

	p.log.Info("renaming completed", zap.Int("renamed", len(report.Renamed)))
	p.notify(EventRenamingCompleted, len(report.Renamed))

	return nil
}

// existingImages lists the images in target before anything is copied. A
// dry run may point at a target that does not exist yet.
func (p *ImageProcessor) existingImages(r *renamer.Renamer, target string) ([]photo.Photo, error) {
	existing, err := r.ListImages(target)
	if err != nil {
		if p.opts.DryRun && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

func (p *ImageProcessor) record(ctx context.Context, run *catalog.Run, report *Report) error {
	renamed := make(map[string]bool, len(report.Renamed))
	for _, ph := range report.Renamed {
		// files left by earlier runs were recorded then
		if ph.Hash == "" {
			continue
		}
		renamed[ph.Hash] = true
		if err := p.recorder.RecordPhoto(ctx, run, ph); err != nil {
			return err
		}
	}

	// copied but not dated, still part of the target
	for _, ph := range report.Collected {
		if renamed[ph.Hash] {
			continue
		}
		if err := p.recorder.RecordPhoto(ctx, run, ph); err != nil {
			return err
		}
	}

	for _, ph := range report.Duplicates {
		if err := p.recorder.RecordPhoto(ctx, run, ph); err != nil {
			return err
		}
	}

	copied := make(map[string]bool, len(report.Collected))
	for _, ph := range report.Collected {
		copied[ph.Path] = true
	}
	for _, f := range report.Failures {
		// copies that could not be dated are recorded above
		if copied[f.Path] {
			continue
		}
		failed := photo.Photo{SourcePath: f.Path, Status: photo.StatusFailed}
		if err := p.recorder.RecordPhoto(ctx, run, failed); err != nil {
			return err
		}
	}

	return nil
}
