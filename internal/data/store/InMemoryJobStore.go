package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMemStore")

// expired jobs are swept every sweepEvery saves
const sweepEvery = 64

type storedJob struct {
	job       jobModel.Job
	expiresAt time.Time
}

// InMemoryJobStore mirrors the redis job store, entries expire after ttl
type InMemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]storedJob
	ttl   time.Duration
	saves int
	now   func() time.Time
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return NewInMemoryJobStore(config.RedisJobStoreTTL, time.Now)
}

func NewInMemoryJobStore(ttl time.Duration, now func() time.Time) *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs: make(map[string]storedJob),
		ttl:  ttl,
		now:  now,
	}
}

func (store *InMemoryJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.now()
	store.jobs[job.Id] = storedJob{job: job, expiresAt: now.Add(store.ttl)}
	store.saves++
	if store.saves%sweepEvery == 0 {
		store.sweep(now)
	}
	inMemLogger.WithTrace(ctx).Debug("Saved job to store", "jobId", job.Id, "status", job.Status)
	return nil
}

func (store *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	store.mu.RLock()
	entry, found := store.jobs[jobId]
	store.mu.RUnlock()

	if found && !store.now().Before(entry.expiresAt) {
		return jobModel.Job{}, false
	}
	return entry.job, found
}

func (store *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.jobs, jobID)
}

// Len counts stored entries, including expired ones not yet swept
func (store *InMemoryJobStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.jobs)
}

func (store *InMemoryJobStore) sweep(now time.Time) {
	for id, entry := range store.jobs {
		if !now.Before(entry.expiresAt) {
			delete(store.jobs, id)
		}
	}
}
