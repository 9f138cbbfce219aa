package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/metrics"
	"github.com/akolanti/rightsbot/internal/rag/index"
	"github.com/akolanti/rightsbot/internal/rag/ingest"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

var ErrEngineUnavailable = errors.New("no chat engine configured")

// Service is the only thing the worker, handlers and MCP tools talk to, the index,
// model clients and vector store stay behind it
type Service interface {
	// EnsureIndex builds the document index if it is not built yet
	EnsureIndex(ctx context.Context) error
	ProcessRequest(ctx context.Context, job jobModel.Job, history []commonModels.Message) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
	Search(ctx context.Context, query string, topK int) ([]commonModels.ScoredChunk, error)
	Status() EngineStatus
}

// IndexSource hands out the shared index, building it on first use
type IndexSource interface {
	Get(ctx context.Context) (*index.Index, error)
	Status() index.Status
}

type EngineStatus struct {
	Ready     bool
	Building  bool
	Documents int
	Chunks    int
	BuiltAt   time.Time
	Error     string
}

type service struct {
	indexes IndexSource
	topK    int
	logger  *logger_i.Logger
}

func NewService(indexes IndexSource) Service {
	return &service{
		indexes: indexes,
		topK:    config.SimilarityTopK,
		logger:  logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) EnsureIndex(ctx context.Context) error {
	if _, err := s.indexes.Get(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	return nil
}

func (s *service) Status() EngineStatus {
	st := s.indexes.Status()
	out := EngineStatus{Ready: st.Ready, Building: st.Building}
	if st.LastError != nil {
		out.Error = st.LastError.Error()
	}
	if st.Index != nil {
		out.Documents = st.Index.Documents
		out.Chunks = st.Index.Chunks()
		out.BuiltAt = st.Index.BuiltAt
	}
	return out
}

func (s *service) ProcessRequest(ctx context.Context, jobt jobModel.Job, history []commonModels.Message) jobModel.Job {
	inMethodLogger := s.logger.WithTrace(ctx).With("JobId", jobt.Id)

	processContext, cancel := context.WithTimeout(ctx, config.RAGRequestTimeout)
	defer cancel()

	jobt.CurrentStep = jobModel.RAGCall

	idx, err := s.executeIndexStep(processContext, inMethodLogger, &jobt)
	if err != nil {
		return s.jobError(jobt, err, "INDEX_UNAVAILABLE", http.StatusServiceUnavailable, true)
	}

	// Embedding
	embeddingStep, err := s.executeEmbeddingStep(processContext, inMethodLogger, &jobt, idx)
	if err != nil {
		return s.jobError(jobt, err, "EMBEDDING_FAILURE", http.StatusInternalServerError, true)
	}

	// Vector DB Search
	matches, err := s.executeVectorSearchStep(processContext, inMethodLogger, &jobt, idx, embeddingStep)
	if err != nil {
		return s.jobError(jobt, err, "VECTOR_DB_FAILURE", http.StatusInternalServerError, true)
	}

	// LLM Generation
	answer, err := s.executeLLMStep(processContext, inMethodLogger, &jobt, idx, matches, history)
	if err != nil {
		return s.jobError(jobt, err, "LLM_GENERATION_FAILURE", http.StatusBadGateway, true)
	}

	return returnOutput(jobt, answer)
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.WithTrace(ctx).With("JobId", job.Id, "file", job.JobPayload.IngestFileName)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()
	defer func() {
		if err := os.Remove(job.JobPayload.IngestURL); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error("Error removing uploaded file", "error", err)
		}
	}()

	job.CurrentStep = jobModel.IndexCall
	idx, err := s.indexes.Get(ctx)
	if err != nil {
		return s.jobError(job, err, "INDEX_UNAVAILABLE", http.StatusServiceUnavailable, true)
	}

	job = logOutput(job, jobModel.IngestProcessing, log)
	doc, err := ingest.LoadDocument(ctx, job.JobPayload.IngestFileName, job.JobPayload.IngestURL)
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE", http.StatusUnprocessableEntity, false)
	}
	if len(doc.Pages) == 0 {
		return s.jobError(job, errors.New("document has no extractable text"), "INGESTION_FAILURE", http.StatusUnprocessableEntity, false)
	}

	n, err := idx.Insert(ctx, doc)
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE", http.StatusInternalServerError, true)
	}

	log.Info("Document ingested", "chunks", n)
	job.JobPayload.Answer = fmt.Sprintf("Indexed %s into %d chunks", doc.Doc.Name, n)
	job.CurrentStep = jobModel.Complete
	return job
}

func (s *service) Search(ctx context.Context, query string, topK int) ([]commonModels.ScoredChunk, error) {
	idx, err := s.indexes.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	if topK <= 0 {
		topK = s.topK
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("retrieve", time.Since(start)) }()
	return idx.Retrieve(ctx, query, topK)
}
