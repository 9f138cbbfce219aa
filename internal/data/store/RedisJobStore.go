package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/data/redisStore"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

func jobKey(id string) string { return "job:" + id }

// RedisJobStore keeps each job as one JSON value, refreshed to RedisJobStoreTTL on every save
type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

// GetRedisJobStore returns nil when redis is unreachable
func GetRedisJobStore(ctx context.Context) *RedisJobStore {
	s := redisStore.GetRedisStore(ctx, config.RedisJobStore)
	if s == nil {
		return nil
	}
	return TestJobStore(s)
}

// TestJobStore wraps an already connected store
func TestJobStore(s *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{store: s, logger: logger_i.NewLogger("JobStore")}
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.Id, err)
	}
	if err = s.store.Set(ctx, jobKey(job.Id), data, config.RedisJobStoreTTL); err != nil {
		return fmt.Errorf("save job %s: %w", job.Id, err)
	}
	s.logger.WithTrace(ctx).Debug("Saved job", "jobId", job.Id, "status", job.Status, "step", job.CurrentStep)
	return nil
}

// GetJob reports false for missing, expired and unreadable jobs alike
func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	log := s.logger.WithTrace(ctx).With("jobId", jobId)

	raw, err := s.store.Get(ctx, jobKey(jobId))
	switch {
	case s.store.IsNil(err):
		log.Debug("Job not found")
		return jobModel.Job{}, false
	case err != nil:
		log.Error("Error reading job", "error", err)
		return jobModel.Job{}, false
	}

	var job jobModel.Job
	if err = json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error("Stored job is unreadable", "error", err)
		return jobModel.Job{}, false
	}
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, jobKey(jobID)); err != nil {
		s.logger.WithTrace(ctx).Error("Error deleting job", "jobId", jobID, "error", err)
	}
}
