package audit

import (
	"context"
	"sync"

	"costume-portal/internal/core/domain/models"
)

// MemoryJobStore tracks export jobs in process memory. Used when no redis is
// configured and by tests; single-node only.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]models.ExportJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]models.ExportJob)}
}

func (s *MemoryJobStore) Create(ctx context.Context, job models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (models.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.ExportJob{}, models.ErrorJobNotFound
	}
	return job, nil
}

func (s *MemoryJobStore) Update(ctx context.Context, job models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return models.ErrorJobNotFound
	}
	s.jobs[job.ID] = job
	return nil
}
