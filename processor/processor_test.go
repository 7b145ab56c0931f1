package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/choiway/photomerge/catalog"
	"github.com/choiway/photomerge/internal/fixture"
	"github.com/choiway/photomerge/photo"
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
	data   []any
}

func (o *recordingObserver) Update(event Event, data any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	o.data = append(o.data, data)
}

func newProcessor(opts ...Option) *ImageProcessor {
	return New(Options{Extensions: imageExts, Workers: 2}, opts...)
}

func sortedNames(t *testing.T, dir string) []string {
	t.Helper()
	names := fixture.Names(t, dir)
	sort.Strings(names)
	return names
}

func TestAddRemoveFolder(t *testing.T) {
	p := newProcessor()
	obs := &recordingObserver{}
	p.AddObserver(obs)

	p.AddFolder("/a")
	p.AddFolder("/b")
	p.AddFolder("/a")
	p.AddFolder("")
	p.RemoveFolder(5)
	p.RemoveFolder(0)

	if got := p.Sources(); !reflect.DeepEqual(got, []string{"/b"}) {
		t.Fatalf("sources = %v", got)
	}

	want := []Event{EventSourceFoldersUpdated, EventSourceFoldersUpdated, EventSourceFoldersUpdated}
	if !reflect.DeepEqual(obs.events, want) {
		t.Fatalf("events = %v", obs.events)
	}
	if last := obs.data[2].([]string); !reflect.DeepEqual(last, []string{"/b"}) {
		t.Fatalf("last payload = %v", last)
	}

	p.RemoveObserver(obs)
	p.SelectTarget("/t")
	if len(obs.events) != 3 {
		t.Fatalf("removed observer still notified")
	}
	if p.Target() != "/t" {
		t.Fatalf("target = %s", p.Target())
	}
}

func TestAddObserver_RemoveFunc(t *testing.T) {
	p := newProcessor()

	calls := 0
	fn := ObserverFunc(func(Event, any) { calls++ })
	remove := p.AddObserver(fn)

	p.SelectTarget("/a")
	p.RemoveObserver(fn)
	p.SelectTarget("/b")
	if calls != 2 {
		t.Fatalf("calls = %d, RemoveObserver must ignore funcs", calls)
	}

	remove()
	p.SelectTarget("/c")
	if calls != 2 {
		t.Fatalf("calls = %d after remove", calls)
	}
}

func TestProcess_RequiresSourcesAndTarget(t *testing.T) {
	p := newProcessor()
	if _, err := p.Process(context.Background()); !errors.Is(err, photo.ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}

	p.AddFolder(t.TempDir())
	if _, err := p.Process(context.Background()); !errors.Is(err, photo.ErrNoTarget) {
		t.Fatalf("expected ErrNoTarget, got %v", err)
	}
}

func TestProcess_MergesAndRenames(t *testing.T) {
	root := t.TempDir()
	phone := filepath.Join(root, "phone")
	camera := filepath.Join(root, "camera")
	target := filepath.Join(root, "merged")

	fixture.WriteFile(t, phone, "IMG_20190304_050607.jpg", []byte("phone shot"))
	fixture.WriteFile(t, phone, "DSC0001.jpg", fixture.JPEGWithDateTime("2015:06:07 08:09:10"))
	fixture.WriteFileAt(t, camera, "scan.png", []byte("scan"), time.Date(2001, 1, 1, 12, 0, 0, 0, time.Local))
	fixture.WriteFile(t, camera, "IMG_20190304_050607(1).jpg", []byte("phone shot"))

	p := newProcessor()
	obs := &recordingObserver{}
	p.AddObserver(obs)
	p.AddFolder(phone)
	p.AddFolder(camera)
	p.SelectTarget(target)

	report, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	want := []string{
		"0001_20010101_120000.png",
		"0002_20150607_080910.jpg",
		"0003_20190304_050607.jpg",
	}
	if got := sortedNames(t, target); !reflect.DeepEqual(got, want) {
		t.Fatalf("target = %v, want %v", got, want)
	}

	if len(report.Collected) != 3 || len(report.Duplicates) != 1 || len(report.Renamed) != 3 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}

	wantEvents := []Event{
		EventSourceFoldersUpdated, EventSourceFoldersUpdated, EventTargetFolderUpdated,
		EventCollectionCompleted, EventRenamingCompleted, EventProcessingCompleted,
	}
	if !reflect.DeepEqual(obs.events, wantEvents) {
		t.Fatalf("events = %v", obs.events)
	}
	if n := obs.data[3].(int); n != 3 {
		t.Fatalf("collection_completed payload = %d", n)
	}

	if _, err := os.Stat(filepath.Join(phone, "DSC0001.jpg")); err != nil {
		t.Fatalf("sources must be left alone: %v", err)
	}
}

func TestProcess_DryRunChangesNothing(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	target := filepath.Join(root, "merged")

	fixture.WriteFile(t, src, "IMG_20190304_050607.jpg", []byte("b"))
	fixture.WriteFile(t, src, "IMG_20180304_050607.jpg", []byte("a"))

	p := New(Options{Extensions: imageExts, Workers: 1, DryRun: true})
	p.AddFolder(src)
	p.SelectTarget(target)

	report, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create the target, stat err = %v", err)
	}
	if len(report.Renamed) != 2 {
		t.Fatalf("planned %d renames", len(report.Renamed))
	}
	if filepath.Base(report.Renamed[0].FinalPath) != "0001_20180304_050607.jpg" {
		t.Fatalf("first plan = %s", report.Renamed[0].FinalPath)
	}
	if !report.DryRun || report.RunID != "" {
		t.Fatalf("report = %+v", report)
	}
}

func TestProcess_SecondRunSkipsKnownContent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	target := filepath.Join(root, "merged")

	fixture.WriteFile(t, src, "IMG_20190304_050607.jpg", []byte("one"))
	fixture.WriteFile(t, src, "IMG_20170304_050607.jpg", []byte("two"))

	store, err := catalog.Open(filepath.Join(root, ".photomerge", "photomerge.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	defer store.Close()

	run := func() *Report {
		p := newProcessor(WithRecorder(store), WithKnownHashes(store.KnownHashes))
		p.AddFolder(src)
		p.SelectTarget(target)
		r, err := p.Process(ctx)
		if err != nil {
			t.Fatalf("Process error: %v", err)
		}
		return r
	}

	first := run()
	if len(first.Collected) != 2 || first.RunID == "" {
		t.Fatalf("first report = %+v", first)
	}

	fixture.WriteFile(t, src, "IMG_20180304_050607.jpg", []byte("three"))

	second := run()
	if len(second.Collected) != 1 || len(second.Duplicates) != 2 {
		t.Fatalf("second report collected=%d duplicates=%d", len(second.Collected), len(second.Duplicates))
	}

	want := []string{
		"0001_20170304_050607.jpg",
		"0002_20180304_050607.jpg",
		"0003_20190304_050607.jpg",
	}
	if got := sortedNames(t, target); !reflect.DeepEqual(got, want) {
		t.Fatalf("target = %v, want %v", got, want)
	}

	b, err := os.ReadFile(filepath.Join(target, "0002_20180304_050607.jpg"))
	if err != nil || string(b) != "three" {
		t.Fatalf("0002 = %q, %v", b, err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].Status != catalog.RunCompleted || runs[1].Status != catalog.RunCompleted {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestProcess_ExistingTargetContentIsNotCopiedAgain(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	target := filepath.Join(root, "merged")
	fixture.WriteFile(t, src, "IMG_20190304_050607.jpg", []byte("one"))

	run := func() *Report {
		p := newProcessor()
		p.AddFolder(src)
		p.SelectTarget(target)
		r, err := p.Process(context.Background())
		if err != nil {
			t.Fatalf("Process error: %v", err)
		}
		return r
	}

	run()
	second := run()

	if len(second.Collected) != 0 || len(second.Duplicates) != 1 {
		t.Fatalf("second report collected=%d duplicates=%d", len(second.Collected), len(second.Duplicates))
	}
	if got := sortedNames(t, target); !reflect.DeepEqual(got, []string{"0001_20190304_050607.jpg"}) {
		t.Fatalf("target = %v", got)
	}
}

type capturingRecorder struct {
	photos []photo.Photo
}

func (c *capturingRecorder) StartRun(context.Context, *catalog.Run) error { return nil }
func (c *capturingRecorder) RecordPhoto(_ context.Context, _ *catalog.Run, p photo.Photo) error {
	c.photos = append(c.photos, p)
	return nil
}
func (c *capturingRecorder) FinishRun(context.Context, *catalog.Run, string) error { return nil }

func TestRecord_StoresFailuresAsFailed(t *testing.T) {
	rec := &capturingRecorder{}
	p := newProcessor(WithRecorder(rec))

	report := &Report{
		Collected: []photo.Photo{{Hash: "aaa", Path: "/t/undated.jpg", Status: photo.StatusCopied}},
		Failures: []photo.Failure{
			{Path: "/src/unreadable.jpg", Err: errors.New("permission denied")},
			{Path: "/t/undated.jpg", Err: errors.New("stat failed")},
		},
	}

	if err := p.record(context.Background(), catalog.NewRun("/t"), report); err != nil {
		t.Fatalf("record error: %v", err)
	}

	if len(rec.photos) != 2 {
		t.Fatalf("recorded %d photos: %+v", len(rec.photos), rec.photos)
	}
	failed := rec.photos[1]
	if failed.Status != photo.StatusFailed || failed.SourcePath != "/src/unreadable.jpg" {
		t.Fatalf("failure row = %+v", failed)
	}
}

type failingRecorder struct {
	finished string
}

func (f *failingRecorder) StartRun(context.Context, *catalog.Run) error { return nil }
func (f *failingRecorder) RecordPhoto(context.Context, *catalog.Run, photo.Photo) error {
	return errors.New("disk full")
}
func (f *failingRecorder) FinishRun(_ context.Context, _ *catalog.Run, status string) error {
	f.finished = status
	return nil
}

func TestProcess_RecorderFailureMarksRunFailed(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	fixture.WriteFile(t, src, "IMG_20190304_050607.jpg", []byte("one"))

	rec := &failingRecorder{}
	p := newProcessor(WithRecorder(rec))
	p.AddFolder(src)
	p.SelectTarget(filepath.Join(root, "merged"))

	if _, err := p.Process(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if rec.finished != catalog.RunFailed {
		t.Fatalf("run status = %q", rec.finished)
	}
}

func TestProcess_FlaggedRandomNamesKeepPrefix(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	target := filepath.Join(root, "merged")
	fixture.WriteFileAt(t, src, "a8Fk2Lq9.jpg", []byte("web"), time.Date(2019, 9, 9, 9, 9, 9, 0, time.Local))

	p := New(Options{Extensions: imageExts, Workers: 1, FlagRandom: true, RandomPrefix: "web"})
	p.AddFolder(src)
	p.SelectTarget(target)

	if _, err := p.Process(context.Background()); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if got := sortedNames(t, target); !reflect.DeepEqual(got, []string{"web_0001_20190909_090909.jpg"}) {
		t.Fatalf("target = %v", got)
	}
}
