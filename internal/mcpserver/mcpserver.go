// Package mcpserver exposes the legal reference index to MCP clients.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/rightsbot/internal/adapter/utils"
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/metrics"
	"github.com/akolanti/rightsbot/internal/rag"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName     = "rightsbot"
	serverVersion  = "v1.0.0"
	SearchToolName = "search_references"
	AskToolName    = "ask_question"
	maxTopK        = 10
)

var ErrEmptyQuery = errors.New("query is empty")

type SearchInput struct {
	Query string `json:"query" jsonschema:"question or keywords to look up in the indexed legal references"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to return, at most 10"`
}

type Passage struct {
	Document string  `json:"document"`
	Page     int     `json:"page"`
	Chunk    int     `json:"chunk"`
	Score    float32 `json:"score"`
	Text     string  `json:"text"`
}

type SearchOutput struct {
	Passages []Passage `json:"passages"`
}

type AskInput struct {
	Question string `json:"question" jsonschema:"a question about Indian legal rights, IPC, CrPC or the Constitution"`
}

type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type tools struct {
	engine rag.Service
	logger *logger_i.Logger
}

func NewServer(engine rag.Service) *mcp.Server {
	t := &tools{engine: engine, logger: logger_i.NewLogger("MCP")}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        SearchToolName,
		Description: "Retrieve the passages of the legal reference documents most similar to a query.",
	}, t.search)
	mcp.AddTool(server, &mcp.Tool{
		Name:        AskToolName,
		Description: "Answer a legal rights question using the reference documents, returns the answer and its sources.",
	}, t.ask)
	return server
}

// NewHandler serves one shared server over the streamable HTTP transport
func NewHandler(engine rag.Service) http.Handler {
	server := NewServer(engine)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func (t *tools) search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("mcp_search", time.Since(start)) }()

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, SearchOutput{}, ErrEmptyQuery
	}
	topK := min(in.TopK, maxTopK)

	hits, err := t.engine.Search(ctx, query, topK)
	if err != nil {
		t.logger.WithTrace(ctx).Error("Search tool failed", "err", err)
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{Passages: make([]Passage, 0, len(hits))}
	for _, h := range hits {
		out.Passages = append(out.Passages, Passage{
			Document: h.Doc.Name,
			Page:     h.PageNum,
			Chunk:    h.ChunkPageOrder + 1,
			Score:    h.Score,
			Text:     h.Chunk,
		})
	}
	return nil, out, nil
}

func (t *tools) ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("mcp_ask", time.Since(start)) }()

	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, AskOutput{}, ErrEmptyQuery
	}

	traceId := utils.GetNewUUID()
	ctx = context.WithValue(ctx, config.TRACE_ID_KEY, traceId)
	request := jobModel.NewQueryJob(utils.GetNewUUID(), "", traceId, question)
	request.Status = jobModel.JobStatusRunning
	job := t.engine.ProcessRequest(ctx, request, nil)

	if job.Status == jobModel.JobStatusError {
		t.logger.WithTrace(ctx).Error("Ask tool failed", "error", job.Error.Message)
		return nil, AskOutput{}, fmt.Errorf("answering failed: %s", job.Error.Message)
	}
	return nil, AskOutput{Answer: job.JobPayload.Answer, Sources: job.JobPayload.Sources}, nil
}
