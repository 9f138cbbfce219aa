package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/metrics"
	"github.com/akolanti/rightsbot/internal/rag/index"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

func returnOutput(job jobModel.Job, ans string) jobModel.Job {
	job.JobPayload.Answer = ans
	job.CurrentStep = jobModel.Complete
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("ProcessRequest", "Current Status", job.CurrentStep)
	return job
}

// jobError keeps the failing step on the job, the caller only sees a generic message
func (s *service) jobError(job jobModel.Job, err error, message string, code int, canRetry bool) jobModel.Job {
	s.logger.Error(message, "error", err, "jobId", job.Id, "step", job.CurrentStep)

	job.Error = jobModel.JobError{
		Code:    code,
		Message: message,
		Retry:   canRetry,
	}
	job.Status = jobModel.JobStatusError
	return job
}

// sourceLabel is what the UI shows under an answer
func sourceLabel(hit commonModels.ScoredChunk) string {
	return fmt.Sprintf("%s (page %d, chunk %d, score %.2f)", hit.Doc.Name, hit.PageNum, hit.ChunkPageOrder+1, hit.Score)
}

func (s *service) executeIndexStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job) (*index.Index, error) {
	*job = logOutput(*job, jobModel.IndexCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index", time.Since(start)) }()

	return s.indexes.Get(ctx)
}

func (s *service) executeEmbeddingStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, idx *index.Index) ([]float32, error) {
	*job = logOutput(*job, jobModel.EmbeddingAPICall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	return idx.EmbedQuery(ctx, job.JobPayload.Question)
}

func (s *service) executeVectorSearchStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, idx *index.Index, emb []float32) ([]string, error) {
	*job = logOutput(*job, jobModel.VectorDBCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	hits, err := idx.Search(ctx, emb, s.topK)
	if err != nil {
		return nil, err
	}
	matches := make([]string, 0, len(hits))
	sources := make([]string, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, hit.Chunk)
		sources = append(sources, sourceLabel(hit))
	}
	job.JobPayload.Sources = sources
	log.Debug("Retrieved context", "matches", len(matches))
	return matches, nil
}

func (s *service) executeLLMStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, idx *index.Index, matches []string, history []commonModels.Message) (string, error) {
	*job = logOutput(*job, jobModel.LLMCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	return idx.LLM.Generate(ctx, job.JobPayload.Question, matches, history)
}
