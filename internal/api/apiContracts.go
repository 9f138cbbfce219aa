package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id" example:"chat_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

type Result struct {
	Status              string       `json:"status"`
	RAGExternalResponse *RAGResponse `json:"rag_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	ChatId    string `json:"chat_id,omitempty"`
	StatusURL string `json:"status_url"`
}

type MessageDTO struct {
	Role      string    `json:"role" example:"assistant"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// EngineStatus tells the UI whether questions can be answered yet
type EngineStatus struct {
	Ready     bool      `json:"ready"`
	Building  bool      `json:"building"`
	Documents int       `json:"documents,omitempty"`
	Chunks    int       `json:"chunks,omitempty"`
	BuiltAt   time.Time `json:"built_at,omitempty"`
	Error     string    `json:"error,omitempty" example:"no chat engine configured"`
}

type SessionResponse struct {
	ChatId      string       `json:"chat_id" example:"chat_550"`
	Messages    []MessageDTO `json:"messages"`
	Pending     bool         `json:"pending"`
	Placeholder string       `json:"placeholder"`
	Thinking    string       `json:"thinking"`
	Engine      EngineStatus `json:"engine"`
}

// requests---------------------

type ChatRequest struct {
	Message string `json:"message" validate:"required" `
	ChatID  string `json:"chatID,omitempty" `
}

type IngestDocumentRequest struct {
	DocumentName string `json:"document_name" validate:"required"`
}
