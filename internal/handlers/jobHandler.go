package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/akolanti/rightsbot/internal/adapter/utils"
	"github.com/akolanti/rightsbot/internal/api"
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/data/store"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/job"
	"github.com/akolanti/rightsbot/internal/metrics"
	"github.com/akolanti/rightsbot/internal/rag"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

var (
	ErrEngineNotReady = errors.New("chat engine is not ready")
	ErrUnknownChat    = store.ErrUnknownChat
	ErrTurnPending    = errors.New("previous message is still being answered")
	ErrEmptyMessage   = errors.New("message is empty")
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

type JobHandler struct {
	service *job.Service
	engine  rag.Service
	warming atomic.Bool
}

func InitJobHandler(jobService *job.Service, engine rag.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService, engine: engine}

		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})
}

func CreateNewJob(ctx context.Context, newJob newJobData) {
	logJH.WithTrace(ctx).Info("To create new job", "jobId", newJob.id, "ingest", newJob.isDocumentIngest)
	handlerInstance.pushToJobChannel(ctx, newJob)
}

func GetJobStatus(ctx context.Context, id string) (result jobModel.Job, isFound bool) {
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctx, id)
	}
	return result, false
}

func EngineStatus() rag.EngineStatus {
	if handlerInstance == nil || handlerInstance.engine == nil {
		return rag.EngineStatus{Error: rag.ErrEngineUnavailable.Error()}
	}
	return handlerInstance.engine.Status()
}

// WarmEngine starts an index build in the background unless one is done or running
func WarmEngine() {
	if handlerInstance == nil {
		return
	}
	handlerInstance.warmEngine()
}

// NewSession starts a transcript holding only the greeting
func NewSession(ctx context.Context) (string, error) {
	chatId := utils.GetNewUUID()
	if err := handlerInstance.initNewChat(ctx, chatId); err != nil {
		return "", err
	}
	handlerInstance.warmEngine()
	return chatId, nil
}

func GetSession(ctx context.Context, chatId string) ([]commonModels.Message, bool, error) {
	transcripts := handlerInstance.service.TranscriptStore
	if chatId == "" || !transcripts.ValidateChatId(ctx, chatId) {
		return nil, false, ErrUnknownChat
	}
	transcript, err := transcripts.GetTranscript(ctx, chatId)
	if err != nil {
		return nil, false, err
	}
	return transcript, transcripts.IsTurnPending(ctx, chatId), nil
}

// StartChatTurn records the user message and queues the job answering it.
// An empty ChatID starts a new session first.
func StartChatTurn(ctx context.Context, chatReq api.ChatRequest) (jobId string, chatId string, err error) {
	h := handlerInstance
	log := logJH.WithTrace(ctx)

	message := strings.TrimSpace(chatReq.Message)
	if message == "" {
		return "", chatReq.ChatID, ErrEmptyMessage
	}
	if !h.engine.Status().Ready {
		h.warmEngine()
		return "", chatReq.ChatID, ErrEngineNotReady
	}

	transcripts := h.service.TranscriptStore
	chatId = chatReq.ChatID
	if chatId == "" {
		chatId = utils.GetNewUUID()
		log.Debug("New chat request", "chatId", chatId)
		if err = h.initNewChat(ctx, chatId); err != nil {
			return "", "", err
		}
	} else if !transcripts.ValidateChatId(ctx, chatId) {
		return "", chatId, ErrUnknownChat
	}

	// the job answering this turn owns its lock
	jobId = utils.GetNewUUID()
	began, err := transcripts.TryBeginTurn(ctx, chatId, jobId)
	if err != nil {
		return "", chatId, err
	}
	if !began {
		return "", chatId, ErrTurnPending
	}

	if err = transcripts.AppendMessage(ctx, chatId, commonModels.NewMessage(commonModels.RoleUser, message)); err != nil {
		if endErr := transcripts.EndTurn(ctx, chatId, jobId); endErr != nil {
			log.Error("Failed to release turn", "chatId", chatId, "err", endErr)
		}
		return "", chatId, err
	}

	newJob := newJobData{
		id:      jobId,
		chatId:  chatId,
		message: message,
		traceId: traceFrom(ctx),
	}
	CreateNewJob(ctx, newJob)
	return newJob.id, chatId, nil
}

// private methods
func (h *JobHandler) pushToJobChannel(ctx context.Context, newJob newJobData) {
	log := logJH.WithTrace(ctx).With("jobId", newJob.id)

	var _job jobModel.Job
	if newJob.isDocumentIngest {
		_job = jobModel.NewIngestJob(newJob.id, newJob.traceId, newJob.documentName, newJob.documentSource)
	} else {
		_job = jobModel.NewQueryJob(newJob.id, newJob.chatId, newJob.traceId, newJob.message)
	}

	// status polling starts right after the 202, the queued state has to be readable
	if err := h.service.JobStore.SaveJob(ctx, _job); err != nil {
		log.Error("Failed to save queued job", "err", err)
	}

	//metrics
	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //this is a blocking send to prevent the system from being overwhelmed
	log.Info("Created new job")

	//a new worker is added every RequestsPerNewWorkerCount requests and for every ingestion job,
	//idle workers retire on their own
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType == jobModel.JobTypeIngest {
		metrics.StartDispatcherSignalCount() //metrics
		log.Debug("Signalling dispatcher", "requestCount", accurateCount)
		h.service.DispatcherChannel <- true
	}
}

func (h *JobHandler) initNewChat(ctx context.Context, chatId string) error {
	err := h.service.TranscriptStore.InitNewChat(ctx, chatId, commonModels.NewMessage(commonModels.RoleAssistant, config.Greeting))
	if err != nil {
		logJH.WithTrace(ctx).Error("Error initiating new chat", "chatId", chatId, "err", err)
		return err
	}
	metrics.IncrementChatSessions()
	return nil
}

func (h *JobHandler) warmEngine() {
	if h.engine == nil {
		return
	}
	st := h.engine.Status()
	if st.Ready || st.Building || !h.warming.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer h.warming.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), config.IndexBuildTimeout)
		defer cancel()
		if err := h.engine.EnsureIndex(ctx); err != nil {
			logJH.Error("Index build failed", "err", err)
		}
	}()
}
