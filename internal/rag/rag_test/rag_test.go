package rag_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/rag"
	"github.com/akolanti/rightsbot/internal/rag/index"
)

func TestProcessRequest_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		setupMocks     func(e *MockEmbedder, v *MockVectorDB, l *MockLLM)
		expectedStep   jobModel.InternalStatus
		expectedStatus jobModel.JobStatus
		expectedAnswer string
		expectedErr    string
		expectedCode   int
	}{
		{
			name: "Success_Full_Flow",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM) {
				l.OnGenerate = func(ctx context.Context, q string, m []string, h []commonModels.Message) (string, error) {
					if len(m) != 1 || m[0] != "default context" {
						return "", errors.New("retrieved context not passed through")
					}
					if len(h) != 2 || h[0].Role != commonModels.RoleAssistant {
						return "", errors.New("history not passed through")
					}
					return "final answer", nil
				}
			},
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "final answer",
		},
		{
			name: "Failure_Embedding",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM) {
				e.OnGetEmbedding = func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("api limit")
				}
			},
			expectedStep:   jobModel.EmbeddingAPICall,
			expectedStatus: jobModel.JobStatusError,
			expectedErr:    "EMBEDDING_FAILURE",
			expectedCode:   http.StatusInternalServerError,
		},
		{
			name: "Failure_Vector_Search",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM) {
				v.OnSearch = func(ctx context.Context, c string, v []float32, limit int) ([]commonModels.ScoredChunk, error) {
					return nil, errors.New("db timeout")
				}
			},
			expectedStep:   jobModel.VectorDBCall,
			expectedStatus: jobModel.JobStatusError,
			expectedErr:    "VECTOR_DB_FAILURE",
			expectedCode:   http.StatusInternalServerError,
		},
		{
			name: "Failure_LLM_Generation",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM) {
				l.OnGenerate = func(ctx context.Context, q string, m []string, h []commonModels.Message) (string, error) {
					return "", errors.New("provider down")
				}
			},
			expectedStep:   jobModel.LLMCall,
			expectedStatus: jobModel.JobStatusError,
			expectedErr:    "LLM_GENERATION_FAILURE",
			expectedCode:   http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mEmbed := &MockEmbedder{}
			mVec := &MockVectorDB{}
			mLLM := &MockLLM{}

			tt.setupMocks(mEmbed, mVec, mLLM)

			s := rag.NewService(newBuilder(t.TempDir(), mEmbed, mVec, mLLM))

			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
			job := jobModel.Job{
				Id:     "test-job",
				Status: jobModel.JobStatusQueued,
				JobPayload: jobModel.JobPayload{
					Question: "What is IPC 420?",
				},
			}
			history := []commonModels.Message{
				commonModels.NewMessage(commonModels.RoleAssistant, config.Greeting),
				commonModels.NewMessage(commonModels.RoleUser, "hello"),
			}

			result := s.ProcessRequest(ctx, job, history)

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v", result.Status, tt.expectedStatus)
			}
			if result.CurrentStep != tt.expectedStep {
				t.Errorf("Step got %v, want %v", result.CurrentStep, tt.expectedStep)
			}
			if tt.expectedAnswer != "" {
				if result.JobPayload.Answer != tt.expectedAnswer {
					t.Errorf("Answer got %s, want %s", result.JobPayload.Answer, tt.expectedAnswer)
				}
				if len(result.JobPayload.Sources) != 1 || !strings.HasPrefix(result.JobPayload.Sources[0], "ipc_sections.csv (page 1") {
					t.Errorf("unexpected sources %v", result.JobPayload.Sources)
				}
			}
			if tt.expectedErr != "" {
				if result.Error.Message != tt.expectedErr || result.Error.Code != tt.expectedCode {
					t.Errorf("Error got %+v, want %s/%d", result.Error, tt.expectedErr, tt.expectedCode)
				}
			}
		})
	}
}

func TestProcessRequest_NoEngine(t *testing.T) {
	b := newBuilder(t.TempDir(), &MockEmbedder{}, &MockVectorDB{}, &MockLLM{})
	b.Credential = func() (string, error) { return "", config.ErrSecretNotFound }
	s := rag.NewService(b)

	result := s.ProcessRequest(context.Background(), jobModel.Job{Id: "j"}, nil)
	if result.Status != jobModel.JobStatusError || result.Error.Message != "INDEX_UNAVAILABLE" {
		t.Errorf("expected INDEX_UNAVAILABLE error, got %+v", result.Error)
	}

	err := s.EnsureIndex(context.Background())
	if !errors.Is(err, rag.ErrEngineUnavailable) || !errors.Is(err, index.ErrMissingCredential) {
		t.Errorf("expected engine unavailable caused by missing credential, got %v", err)
	}
}

func TestEnsureIndexBuildsOnce(t *testing.T) {
	b := newBuilder(t.TempDir(), &MockEmbedder{}, &MockVectorDB{}, &MockLLM{})
	s := rag.NewService(b)

	for i := 0; i < 3; i++ {
		if err := s.EnsureIndex(context.Background()); err != nil {
			t.Fatalf("EnsureIndex failed: %v", err)
		}
	}
	_ = s.ProcessRequest(context.Background(), jobModel.Job{Id: "j", JobPayload: jobModel.JobPayload{Question: "q"}}, nil)

	if b.Builds() != 1 {
		t.Errorf("index should be built once, got %d builds", b.Builds())
	}
}

func TestStatusReportsIndex(t *testing.T) {
	b := newBuilder(t.TempDir(), &MockEmbedder{}, &MockVectorDB{}, &MockLLM{})
	s := rag.NewService(b)

	if st := s.Status(); st.Ready || st.Building {
		t.Fatalf("engine should start idle, got %+v", st)
	}
	if err := s.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex failed: %v", err)
	}
	st := s.Status()
	if !st.Ready || st.Documents != 1 || st.Chunks == 0 || st.BuiltAt.IsZero() || st.Error != "" {
		t.Errorf("unexpected status after build: %+v", st)
	}
}

func TestIngestDocument_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		fileName       string
		content        string
		setupMocks     func(e *MockEmbedder, v *MockVectorDB)
		expectedStatus jobModel.JobStatus
		expectedErr    string
	}{
		{
			name:           "Ingestion_Success",
			fileName:       "rights.txt",
			content:        "Article 21: Protection of life and personal liberty.",
			setupMocks:     func(e *MockEmbedder, v *MockVectorDB) {},
			expectedStatus: jobModel.JobStatusQueued,
		},
		{
			name:     "Failure_Batch_Upsert",
			fileName: "rights.txt",
			content:  "Article 14: Equality before law.",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB) {
				calls := 0
				v.OnUpsertBatch = func(ctx context.Context, coll string, chunks []commonModels.DocChunk, vectors [][]float32) error {
					calls++
					if calls > 1 { // first call is the initial index build
						return errors.New("disk full")
					}
					return nil
				}
			},
			expectedStatus: jobModel.JobStatusError,
			expectedErr:    "INGESTION_FAILURE",
		},
		{
			name:           "Failure_Unsupported_Type",
			fileName:       "scan.png",
			content:        "binary",
			setupMocks:     func(e *MockEmbedder, v *MockVectorDB) {},
			expectedStatus: jobModel.JobStatusError,
			expectedErr:    "INGESTION_FAILURE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mEmbed := &MockEmbedder{}
			mVec := &MockVectorDB{}
			tt.setupMocks(mEmbed, mVec)

			s := rag.NewService(newBuilder(t.TempDir(), mEmbed, mVec, &MockLLM{}))

			uploaded := filepath.Join(t.TempDir(), tt.fileName)
			if err := os.WriteFile(uploaded, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "ingest-trace")
			job := jobModel.Job{
				Id:      "ingest-job-1",
				Status:  jobModel.JobStatusQueued,
				JobType: jobModel.JobTypeIngest,
				JobPayload: jobModel.JobPayload{
					IngestFileName: tt.fileName,
					IngestURL:      uploaded,
				},
			}

			result := s.IngestDocument(ctx, job)

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v", result.Status, tt.expectedStatus)
			}
			if tt.expectedErr != "" && result.Error.Message != tt.expectedErr {
				t.Errorf("Error got %+v, want %s", result.Error, tt.expectedErr)
			}
			if _, err := os.Stat(uploaded); !os.IsNotExist(err) {
				t.Error("uploaded file should be removed after ingestion")
			}
		})
	}
}

func TestSearch(t *testing.T) {
	var gotLimit int
	v := &MockVectorDB{
		OnSearch: func(ctx context.Context, c string, vec []float32, limit int) ([]commonModels.ScoredChunk, error) {
			gotLimit = limit
			return []commonModels.ScoredChunk{{DocChunk: commonModels.DocChunk{Chunk: "IPC 420"}}}, nil
		},
	}
	s := rag.NewService(newBuilder(t.TempDir(), &MockEmbedder{}, v, &MockLLM{}))

	hits, err := s.Search(context.Background(), "cheating", 0)
	if err != nil || len(hits) != 1 {
		t.Fatalf("Search failed: %v %v", hits, err)
	}
	if gotLimit != config.SimilarityTopK {
		t.Errorf("default top-k should be %d, got %d", config.SimilarityTopK, gotLimit)
	}
}
