package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	jobmodel "github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/metrics"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, jobTimeout)
	defer cancel()
	log := logger.WithTrace(ctx).With("jobId", job.Id)
	log.Debug("Processing job", "type", job.JobType)

	job.Status = jobmodel.JobStatusRunning
	saveJobState(ctx, job, log)

	if job.JobType == jobmodel.JobTypeIngest {
		job = _ragService.IngestDocument(ctx, job)
	} else {
		job = processQuery(ctx, job, log)
	}

	if !job.Finished() {
		job.Status = jobmodel.JobStatusComplete
	}
	job.EndTime = time.Now().UTC()
	saveJobState(ctx, job, log)
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	count := atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", count)
	metrics.DecrementActiveWorkerCount()
}

// processQuery answers one chat turn. The user message is already the last transcript
// entry, the reply is appended after the engine returns and then the turn is released.
func processQuery(ctx context.Context, job jobmodel.Job, log *logger_i.Logger) jobmodel.Job {
	store := _jobService.TranscriptStore
	defer func() {
		// the turn lock must be released even when the job deadline has passed
		if err := store.EndTurn(context.WithoutCancel(ctx), job.ChatId, job.Id); err != nil {
			log.Error("Failed to release turn", "chatId", job.ChatId, "err", err)
		}
	}()

	// the queue wait is over, the lock now only has to outlive this job
	if held, err := store.RefreshTurn(ctx, job.ChatId, job.Id, config.TurnRunTTL); err != nil {
		log.Error("Failed to refresh turn lock", "chatId", job.ChatId, "err", err)
	} else if !held {
		log.Warn("Turn lock expired while queued", "chatId", job.ChatId)
	}

	job.CurrentStep = jobmodel.TranscriptCall
	history, err := store.GetMessageHistory(ctx, job.ChatId, config.ChatMemoryMessages+1)
	if err != nil {
		log.Error("Failed to get message history", "err", err)
	}
	history = dropPendingQuestion(history, job.JobPayload.Question)

	job = _ragService.ProcessRequest(ctx, job, history)

	reply := job.JobPayload.Answer
	if job.Status == jobmodel.JobStatusError {
		reply = errorReply(job.Error)
	}
	if err = store.AppendMessage(context.WithoutCancel(ctx), job.ChatId, commonModels.NewMessage(commonModels.RoleAssistant, reply)); err != nil {
		log.Error("Failed to save assistant reply", "chatId", job.ChatId, "err", err)
	}
	return job
}

// dropPendingQuestion removes the trailing user message of the current turn, it is sent separately
func dropPendingQuestion(history []commonModels.Message, question string) []commonModels.Message {
	if n := len(history); n > 0 && history[n-1].Role == commonModels.RoleUser && history[n-1].Content == question {
		return history[:n-1]
	}
	if len(history) > config.ChatMemoryMessages {
		return history[len(history)-config.ChatMemoryMessages:]
	}
	return history
}

func errorReply(e jobmodel.JobError) string {
	if e.Message == "INDEX_UNAVAILABLE" {
		return "No chat engine is configured right now. Please try again later."
	}
	return "Sorry, something went wrong while answering. Please try again."
}

func saveJobState(ctx context.Context, job jobmodel.Job, log *logger_i.Logger) {
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		log.Error("Failed to update job status", "err", err)
	}
}
