package job

import (
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/data/store"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

// Service is shared by the request handlers and the worker pool.
// RequestCount is only touched atomically.
type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	TranscriptStore   jobModel.TranscriptStore
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	TranscriptStore   jobModel.TranscriptStore
}

// InitJobService falls back to process local stores for any store left nil
// and to config sized channels for any channel left nil.
func InitJobService(cfg ServiceConfig) *Service {
	log := logger_i.NewLogger("JobService")
	s := &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		TranscriptStore:   cfg.TranscriptStore,
	}
	if s.JobChannel == nil {
		s.JobChannel = make(chan jobModel.Job, config.BufferLimit)
	}
	if s.DispatcherChannel == nil {
		s.DispatcherChannel = make(chan bool, 1)
	}
	if s.JobStore == nil {
		log.Warn("No job store configured, jobs are kept in memory")
		s.JobStore = store.InitInMemoryJobStore()
	}
	if s.TranscriptStore == nil {
		log.Warn("No transcript store configured, sessions are kept in memory")
		s.TranscriptStore = store.InitTranscriptStore()
	}
	return s
}
