// Package catalog keeps a history of merge runs and the photos each run
// copied, so later runs into the same target can skip known content.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/choiway/photomerge/photo"
)

const (
	RunStarted   = "started"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

type Run struct {
	ID         int64
	UUID       string
	Target     string
	Status     string
	InsertedAt time.Time
	UpdatedAt  time.Time
	Photos     int
}

func NewRun(target string) *Run {
	return &Run{UUID: uuid.NewString(), Target: target, Status: RunStarted}
}

// Recorder receives run lifecycle and photo records.
type Recorder interface {
	StartRun(ctx context.Context, run *Run) error
	RecordPhoto(ctx context.Context, run *Run, p photo.Photo) error
	FinishRun(ctx context.Context, run *Run, status string) error
}

type tee []Recorder

// Tee fans records out to every recorder, stopping at the first error.
func Tee(recorders ...Recorder) Recorder {
	return tee(recorders)
}

func (t tee) StartRun(ctx context.Context, run *Run) error {
	for _, r := range t {
		if err := r.StartRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) RecordPhoto(ctx context.Context, run *Run, p photo.Photo) error {
	for _, r := range t {
		if err := r.RecordPhoto(ctx, run, p); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) FinishRun(ctx context.Context, run *Run, status string) error {
	for _, r := range t {
		if err := r.FinishRun(ctx, run, status); err != nil {
			return err
		}
	}
	return nil
}
