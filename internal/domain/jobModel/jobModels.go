package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/rightsbot/internal/domain/commonModels"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit    InternalStatus = "Init"
	IndexCall        InternalStatus = "Index"
	RAGCall          InternalStatus = "RAG"
	LLMCall          InternalStatus = "LLM"
	VectorDBCall     InternalStatus = "VectorDB"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	TranscriptCall   InternalStatus = "Transcript"

	IngestInit       InternalStatus = "IngestInit"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery  JobType = "Query"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	ChatId      string         `json:"chat_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Sources  []string `json:"sources,omitempty"`

	IngestFileName string `json:"ingest_file_name,omitempty"`
	IngestURL      string `json:"ingest_url,omitempty"`
}

// NewQueryJob is a queued job answering question for the chat session chatId
func NewQueryJob(id, chatId, traceId, question string) Job {
	return Job{
		Id:          id,
		ChatId:      chatId,
		TraceId:     traceId,
		JobType:     JobTypeQuery,
		JobPayload:  JobPayload{Question: question},
		CreatedTime: time.Now().UTC(),
		Status:      JobStatusQueued,
		CurrentStep: UserQueryInit,
	}
}

// NewIngestJob is a queued job adding the file at path to the reference index under name
func NewIngestJob(id, traceId, name, path string) Job {
	return Job{
		Id:          id,
		TraceId:     traceId,
		JobType:     JobTypeIngest,
		JobPayload:  JobPayload{IngestFileName: name, IngestURL: path},
		CreatedTime: time.Now().UTC(),
		Status:      JobStatusQueued,
		CurrentStep: IngestInit,
	}
}

// Finished reports whether polling the job can stop
func (j Job) Finished() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusError
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

// TranscriptStore keeps the ordered chat transcript of every session.
// While a turn is pending (TryBeginTurn succeeded and EndTurn not yet called)
// the last message of the transcript is that turn's user message.
// A turn lock is owned by the job answering it: only that owner can refresh or release it.
type TranscriptStore interface {
	ValidateChatId(ctx context.Context, id string) bool
	InitNewChat(ctx context.Context, id string, greeting commonModels.Message) error
	AppendMessage(ctx context.Context, id string, message commonModels.Message) error
	GetTranscript(ctx context.Context, id string) ([]commonModels.Message, error)
	GetMessageHistory(ctx context.Context, id string, limit int) ([]commonModels.Message, error)
	TryBeginTurn(ctx context.Context, id string, owner string) (bool, error)
	RefreshTurn(ctx context.Context, id string, owner string, ttl time.Duration) (bool, error)
	EndTurn(ctx context.Context, id string, owner string) error
	IsTurnPending(ctx context.Context, id string) bool
}
