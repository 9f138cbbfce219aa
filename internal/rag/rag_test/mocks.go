package rag_test

import (
	"context"

	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/rag/index"
	"github.com/akolanti/rightsbot/internal/rag/ingest"
)

// MockVectorDB implements vectorDB.DataProcessor
type MockVectorDB struct {
	OnSearch          func(ctx context.Context, coll string, vectorVal []float32, limit int) ([]commonModels.ScoredChunk, error)
	OnResetCollection func(ctx context.Context, name string, dim int) error
	OnUpsertBatch     func(ctx context.Context, name string, chunks []commonModels.DocChunk, vectors [][]float32) error
}

func (m *MockVectorDB) Search(ctx context.Context, coll string, v []float32, limit int) ([]commonModels.ScoredChunk, error) {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, coll, v, limit)
	}
	return []commonModels.ScoredChunk{{
		DocChunk: commonModels.DocChunk{Chunk: "default context", Doc: commonModels.Document{Name: "ipc_sections.csv"}, PageNum: 1},
		Score:    0.9,
	}}, nil
}

func (m *MockVectorDB) CreateCollection(ctx context.Context, name string, dim int) error {
	return nil
}

func (m *MockVectorDB) ResetCollection(ctx context.Context, name string, dim int) error {
	if m.OnResetCollection != nil {
		return m.OnResetCollection(ctx, name, dim)
	}
	return nil
}

func (m *MockVectorDB) UpsertBatch(ctx context.Context, name string, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if m.OnUpsertBatch != nil {
		return m.OnUpsertBatch(ctx, name, chunks, vectors)
	}
	return nil
}

type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	return make([][]float32, len(chunks)), nil
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return []float32{0.1}, nil
}

func (m *MockEmbedder) Dimension() int    { return 1 }
func (m *MockEmbedder) ModelName() string { return "mock" }

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, query string, matches []string, history []commonModels.Message) (string, error)
}

func (m *MockLLM) Generate(ctx context.Context, q string, mth []string, hist []commonModels.Message) (string, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, q, mth, hist)
	}
	return "mocked llm response", nil
}

// newBuilder wires the mocks into a real index builder over a temp data dir
func newBuilder(dataDir string, e *MockEmbedder, v *MockVectorDB, l *MockLLM) *index.Builder {
	return &index.Builder{
		DataDir:    dataDir,
		Files:      []string{"ipc_sections.csv"},
		Collection: "refs",
		Credential: func() (string, error) { return "test-key", nil },
		NewClients: func(ctx context.Context, key string) (index.Clients, error) {
			return index.Clients{Embedder: e, LLM: l}, nil
		},
		LoadDocuments: func(ctx context.Context, paths []string) ([]ingest.LoadedDocument, error) {
			return []ingest.LoadedDocument{{
				Doc:   commonModels.Document{Id: "ipc", Name: "ipc_sections.csv", ContentType: commonModels.CSV},
				Pages: []ingest.Page{{Number: 1, Content: "Section: IPC 420\nOffense: Cheating"}},
			}}, nil
		},
		VectorDB: v,
	}
}
