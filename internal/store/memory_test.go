package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fightwatch/api/internal/model"
)

func TestMemoryStoreSaveGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := &model.Job{
		ID:        "job-1",
		Status:    model.JobStatusQueued,
		VideoPath: "/tmp/a.mp4",
		CreatedAt: time.Now(),
	}
	if err := s.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "job-1" || got.Status != model.JobStatusQueued {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := &model.Job{ID: "job-2", Status: model.JobStatusQueued}
	if err := s.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := s.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Mutating the caller's copies must not reach the stored record.
	job.Status = model.JobStatusFailed
	snap.Status = model.JobStatusCompleted

	fresh, err := s.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.Status != model.JobStatusQueued {
		t.Errorf("stored status = %s, want queued", fresh.Status)
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, &model.Job{ID: "job-3", Status: model.JobStatusQueued}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, &model.Job{ID: "job-3", Status: model.JobStatusProcessing}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "job-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.JobStatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
}
