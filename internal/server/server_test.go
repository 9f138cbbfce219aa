package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/rightsbot/internal/adapter/utils"
	"github.com/akolanti/rightsbot/internal/api"
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/data/store"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/handlers"
	"github.com/akolanti/rightsbot/internal/job"
	"github.com/akolanti/rightsbot/internal/rag"
)

type fakeEngine struct {
	ready   atomic.Bool
	ensured atomic.Int32
}

func (f *fakeEngine) EnsureIndex(ctx context.Context) error {
	f.ensured.Add(1)
	return rag.ErrEngineUnavailable
}

func (f *fakeEngine) ProcessRequest(ctx context.Context, j jobModel.Job, _ []commonModels.Message) jobModel.Job {
	return j
}

func (f *fakeEngine) IngestDocument(ctx context.Context, j jobModel.Job) jobModel.Job { return j }

func (f *fakeEngine) Search(ctx context.Context, q string, k int) ([]commonModels.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeEngine) Status() rag.EngineStatus {
	if f.ready.Load() {
		return rag.EngineStatus{Ready: true, Documents: 1, Chunks: 3}
	}
	return rag.EngineStatus{Error: "missing credential"}
}

type testEnv struct {
	router     http.Handler
	engine     *fakeEngine
	jobs       chan jobModel.Job
	jobStore   jobModel.JobStore
	transcript *store.InMemoryTranscriptStore
	addr       atomic.Int32
}

var env *testEnv

// the handlers keep a process wide singleton, every test shares one environment
func setup(t *testing.T) *testEnv {
	t.Helper()
	if env != nil {
		env.engine.ready.Store(true)
		return env
	}
	env = &testEnv{
		engine:     &fakeEngine{},
		jobs:       make(chan jobModel.Job, 100),
		jobStore:   store.InitInMemoryJobStore(),
		transcript: store.InitTranscriptStore(),
	}
	env.engine.ready.Store(true)
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        env.jobs,
		DispatcherChannel: make(chan bool, 100),
		JobStore:          env.jobStore,
		TranscriptStore:   env.transcript,
	})
	handlers.InitJobHandler(service, env.engine)

	r := utils.NewRouter()
	mcpStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	RegisterRoutes(r, mcpStub)
	env.router = r
	return env
}

// each call uses a fresh client address so the chat rate limit never interferes
func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.RemoteAddr = fmt.Sprintf("198.51.100.%d:4242", e.addr.Add(1)%250+1)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func chatRequest(message, chatId string) *http.Request {
	body, _ := json.Marshal(api.ChatRequest{Message: message, ChatID: chatId})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func drain(e *testEnv) {
	for {
		select {
		case <-e.jobs:
		default:
			return
		}
	}
}

func TestChatPage(t *testing.T) {
	e := setup(t)
	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") || !strings.Contains(rec.Body.String(), "Urimaikural") {
		t.Error("chat page not served")
	}
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Error("trace id header missing")
	}
}

func TestSessions(t *testing.T) {
	e := setup(t)

	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	session := decode[api.SessionResponse](t, rec)
	if session.ChatId == "" || len(session.Messages) != 1 {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Messages[0].Role != string(commonModels.RoleAssistant) || session.Messages[0].Content != config.Greeting {
		t.Errorf("transcript must start with the greeting, got %+v", session.Messages[0])
	}
	if !session.Engine.Ready || session.Pending || session.Placeholder != config.ChatInputPlaceholder {
		t.Errorf("unexpected session state %+v", session)
	}

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+session.ChatId, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/sessions/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session should be 404, got %d", rec.Code)
	}
}

func TestChatTurn(t *testing.T) {
	e := setup(t)
	drain(e)

	rec := e.do(t, chatRequest("What is IPC 420?", ""))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	queued := decode[api.InitJobResponse](t, rec)
	if queued.Id == "" || queued.ChatId == "" || queued.StatusURL != "status/"+queued.Id {
		t.Fatalf("unexpected response %+v", queued)
	}

	select {
	case j := <-e.jobs:
		if j.Id != queued.Id || j.ChatId != queued.ChatId || j.JobPayload.Question != "What is IPC 420?" || j.JobType != jobModel.JobTypeQuery {
			t.Errorf("unexpected job %+v", j)
		}
	case <-time.After(time.Second):
		t.Fatal("job was not queued")
	}

	transcript, _ := e.transcript.GetTranscript(context.Background(), queued.ChatId)
	if len(transcript) != 2 || transcript[0].Role != commonModels.RoleAssistant || transcript[1].Content != "What is IPC 420?" {
		t.Errorf("user message must follow the greeting before the job runs, got %+v", transcript)
	}

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/status/"+queued.Id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("queued job should be visible, got %d", rec.Code)
	}
	if status := decode[api.JobResponse](t, rec); status.Result.Status != string(jobModel.JobStatusQueued) {
		t.Errorf("expected queued status, got %+v", status.Result)
	}

	// the turn is still pending, a second message must wait
	rec = e.do(t, chatRequest("And IPC 302?", queued.ChatId))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while a turn is pending, got %d", rec.Code)
	}

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+queued.ChatId, nil))
	if session := decode[api.SessionResponse](t, rec); !session.Pending {
		t.Error("session should report the pending turn")
	}

	// only the queued job owns the lock
	_ = e.transcript.EndTurn(context.Background(), queued.ChatId, "some-other-job")
	if rec = e.do(t, chatRequest("And IPC 302?", queued.ChatId)); rec.Code != http.StatusConflict {
		t.Errorf("a foreign release must not end the turn, got %d", rec.Code)
	}

	_ = e.transcript.EndTurn(context.Background(), queued.ChatId, queued.Id)
	rec = e.do(t, chatRequest("And IPC 302?", queued.ChatId))
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202 once the turn ended, got %d", rec.Code)
	}
	drain(e)
}

// a page reloaded mid turn polls its session until pending clears
func TestSessionAfterReloadDuringTurn(t *testing.T) {
	e := setup(t)
	drain(e)
	ctx := context.Background()

	rec := e.do(t, chatRequest("Can police detain me without a warrant?", ""))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	queued := decode[api.InitJobResponse](t, rec)
	drain(e)

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+queued.ChatId, nil))
	session := decode[api.SessionResponse](t, rec)
	if !session.Pending || len(session.Messages) != 2 {
		t.Fatalf("reloaded session should show the pending question, got %+v", session)
	}

	_ = e.transcript.AppendMessage(ctx, queued.ChatId, commonModels.NewMessage(commonModels.RoleAssistant, "Only in limited cases."))
	_ = e.transcript.EndTurn(ctx, queued.ChatId, queued.Id)

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+queued.ChatId, nil))
	session = decode[api.SessionResponse](t, rec)
	if session.Pending || len(session.Messages) != 3 || session.Messages[2].Role != string(commonModels.RoleAssistant) {
		t.Errorf("session should show the reply once the turn ends, got %+v", session)
	}

	page := e.do(t, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "s.engine.ready && !s.pending") {
		t.Error("chat page must keep polling while a turn is pending")
	}
}

func TestChatRejections(t *testing.T) {
	e := setup(t)
	drain(e)

	tests := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"Empty_Message", chatRequest("   ", ""), http.StatusBadRequest},
		{"Unknown_Chat", chatRequest("hello", "nope"), http.StatusBadRequest},
		{"Bad_Json", httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.req)
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/status/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job should be 404, got %d", rec.Code)
	}
	if len(e.jobs) != 0 {
		t.Error("rejected requests must not queue jobs")
	}
}

func TestChatWithoutEngine(t *testing.T) {
	e := setup(t)
	drain(e)
	e.engine.ready.Store(false)
	defer e.engine.ready.Store(true)

	before := e.engine.ensured.Load()
	rec := e.do(t, chatRequest("What are my rights?", ""))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp := decode[api.JobResponse](t, rec); resp.Error == nil || resp.Error.Message != "no chat engine configured" {
		t.Errorf("unexpected error body %+v", resp.Error)
	}
	deadline := time.Now().Add(time.Second)
	for e.engine.ensured.Load() == before && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if e.engine.ensured.Load() == before {
		t.Error("a chat without engine should start an index build")
	}

	rec = e.do(t, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	if session := decode[api.SessionResponse](t, rec); session.Engine.Error != rag.ErrEngineUnavailable.Error() {
		t.Errorf("session should report the missing engine, got %+v", session.Engine)
	}
	if len(e.jobs) != 0 {
		t.Error("no job should be queued without an engine")
	}
}

func ingestRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("document_name", "Know your rights")
	fw, err := mw.CreateFormFile("document", "rights.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("Article 21: Protection of life and personal liberty."))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestIngestRequiresToken(t *testing.T) {
	e := setup(t)
	drain(e)
	t.Setenv(config.AuthTokenName, "s3cret")
	t.Setenv("UPLOAD_DIR", t.TempDir())

	rec := e.do(t, ingestRequest(t, ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = e.do(t, ingestRequest(t, "wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong token, got %d", rec.Code)
	}

	rec = e.do(t, ingestRequest(t, "s3cret"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	select {
	case j := <-e.jobs:
		if j.JobType != jobModel.JobTypeIngest || j.JobPayload.IngestFileName != "Know your rights" || !strings.HasSuffix(j.JobPayload.IngestURL, "rights.txt") {
			t.Errorf("unexpected ingest job %+v", j)
		}
	case <-time.After(time.Second):
		t.Fatal("ingest job was not queued")
	}
}

func TestMCPRequiresToken(t *testing.T) {
	e := setup(t)
	t.Setenv(config.AuthTokenName, "s3cret")

	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}")))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = e.do(t, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected the mcp handler to be reached, got %d", rec.Code)
	}
}
