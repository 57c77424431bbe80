package store

import (
	"context"
	"errors"
	"sync"

	"github.com/fightwatch/api/internal/model"
)

// ErrNotFound marks an unknown job id at the status/result boundary.
var ErrNotFound = errors.New("job not found")

// Store persists job records. Each job has exactly one writer (its worker);
// Get returns a deep copy so concurrent status readers never observe a torn
// record.
type Store interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
}

// MemoryStore is the in-process backend used when no Redis is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

// Save stores a snapshot of the record.
func (s *MemoryStore) Save(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a snapshot of the record, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}
