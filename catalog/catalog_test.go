package catalog

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/choiway/photomerge/photo"
)

type memRecorder struct {
	started  int
	photos   []photo.Photo
	finished string
	err      error
}

func (m *memRecorder) StartRun(context.Context, *Run) error { m.started++; return m.err }
func (m *memRecorder) RecordPhoto(_ context.Context, _ *Run, p photo.Photo) error {
	m.photos = append(m.photos, p)
	return m.err
}
func (m *memRecorder) FinishRun(_ context.Context, _ *Run, status string) error {
	m.finished = status
	return m.err
}

func TestTee_FansOut(t *testing.T) {
	ctx := context.Background()
	a, b := &memRecorder{}, &memRecorder{}
	rec := Tee(a, b)
	run := NewRun("/t")

	if err := rec.StartRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := rec.RecordPhoto(ctx, run, photo.Photo{Hash: "h"}); err != nil {
		t.Fatal(err)
	}
	if err := rec.FinishRun(ctx, run, RunCompleted); err != nil {
		t.Fatal(err)
	}

	for _, m := range []*memRecorder{a, b} {
		if m.started != 1 || len(m.photos) != 1 || m.finished != RunCompleted {
			t.Fatalf("recorder state = %+v", m)
		}
	}
}

func TestTee_StopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	a, b := &memRecorder{err: boom}, &memRecorder{}

	err := Tee(a, b).StartRun(context.Background(), NewRun("/t"))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if b.started != 0 {
		t.Fatalf("second recorder should not be called")
	}
}

func TestNewRun(t *testing.T) {
	a, b := NewRun("/t"), NewRun("/t")
	if a.UUID == "" || a.UUID == b.UUID {
		t.Fatalf("expected unique uuids, got %q %q", a.UUID, b.UUID)
	}
	if a.Status != RunStarted {
		t.Fatalf("status = %s", a.Status)
	}
}

func TestPgMirror(t *testing.T) {
	url := os.Getenv("PHOTOMERGE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("PHOTOMERGE_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	m, err := ConnectPg(ctx, url)
	if err != nil {
		t.Fatalf("ConnectPg error: %v", err)
	}
	defer m.Close()

	run := NewRun("/t")
	if err := m.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun error: %v", err)
	}
	if err := m.RecordPhoto(ctx, run, photo.Photo{Hash: "h", SourcePath: "/s/a.jpg", Path: "/t/a.jpg", Status: photo.StatusCopied}); err != nil {
		t.Fatalf("RecordPhoto error: %v", err)
	}
	if err := m.FinishRun(ctx, run, RunCompleted); err != nil {
		t.Fatalf("FinishRun error: %v", err)
	}
}
