package store

import (
	"errors"
	"sync"
	"time"

	"webpptx/internal/models"
)

// ErrNotFound is returned when a job identity is unknown.
var ErrNotFound = errors.New("job not found")

// Store is the job-identity keyed record map shared by the admission path,
// the poll path, and the worker pool. All status/result mutations happen
// under one mutex so a reader always sees a consistent snapshot.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// New creates an empty store.
func New() *Store {
	return &Store{jobs: make(map[string]*models.Job)}
}

// Create registers a freshly admitted job as queued.
func (s *Store) Create(job models.Job) models.Job {
	job.Status = models.StatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := job
	s.jobs[job.ID] = &stored
	return job
}

// Get returns a snapshot of the job, if known.
func (s *Store) Get(id string) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return cloneJob(j), true
}

// MarkRunning transitions a queued job to running and returns its snapshot.
// A job is claimed by exactly one worker: a second claim fails.
func (s *Store) MarkRunning(id string) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	if j.Status != models.StatusQueued {
		return models.Job{}, errors.New("job not claimable: " + j.Status)
	}
	j.Status = models.StatusRunning
	return cloneJob(j), nil
}

// MarkDone publishes the completed result handle and the done status in one
// step.
func (s *Store) MarkDone(id, resultPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Status = models.StatusDone
	j.ResultPath = resultPath
	return nil
}

// MarkFailed records a terminal failure. Failed jobs hold no result and are
// never retried.
func (s *Store) MarkFailed(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Status = models.StatusFailed
	j.FailureReason = reason
	j.ResultPath = ""
	return nil
}

// TakeResult hands out the result handle for a done job exactly once.
// Queued, running, failed, unknown, and already-retrieved jobs all report
// absent; callers surface an empty response without distinguishing them.
func (s *Store) TakeResult(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != models.StatusDone || j.Retrieved {
		return "", false
	}
	j.Retrieved = true
	return j.ResultPath, true
}

func cloneJob(j *models.Job) models.Job {
	out := *j
	out.StillImages = append([]string(nil), j.StillImages...)
	return out
}
