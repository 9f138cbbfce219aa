package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/metrics"
	"github.com/akolanti/rightsbot/internal/rag/embedding"
	"github.com/akolanti/rightsbot/internal/rag/ingest"
	"github.com/akolanti/rightsbot/internal/rag/llm"
	"github.com/akolanti/rightsbot/internal/rag/vectorDB"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

var (
	ErrDataDirMissing    = errors.New("data directory does not exist")
	ErrUnknownProvider   = errors.New("unknown model provider")
	ErrMissingCredential = errors.New("model api key is not configured")
	ErrClientInit        = errors.New("could not create model clients")
	ErrDocumentLoad      = errors.New("could not load reference documents")
	ErrNoDocuments       = errors.New("no reference documents to index")
)

type Clients struct {
	Embedder embedding.Embedder
	LLM      llm.Provider
}

type LoadFunc func(ctx context.Context, paths []string) ([]ingest.LoadedDocument, error)

// Index is the built document index together with the clients that query it
type Index struct {
	Collection string
	Documents  int
	BuiltAt    time.Time
	Embedder   embedding.Embedder
	LLM        llm.Provider

	chunks   atomic.Int64
	vectorDB vectorDB.DataProcessor
	pipeline *ingest.Pipeline
}

func (i *Index) Chunks() int {
	return int(i.chunks.Load())
}

func (i *Index) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return i.Embedder.GetEmbedding(ctx, query)
}

func (i *Index) Search(ctx context.Context, vector []float32, topK int) ([]commonModels.ScoredChunk, error) {
	return i.vectorDB.Search(ctx, i.Collection, vector, topK)
}

// Retrieve returns the topK chunks most similar to query
func (i *Index) Retrieve(ctx context.Context, query string, topK int) ([]commonModels.ScoredChunk, error) {
	vector, err := i.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return i.Search(ctx, vector, topK)
}

// Insert adds one more document to the live index and returns its chunk count
func (i *Index) Insert(ctx context.Context, doc ingest.LoadedDocument) (int, error) {
	n, err := i.pipeline.Ingest(ctx, doc)
	if err != nil {
		return 0, err
	}
	i.chunks.Add(int64(n))
	metrics.AddIndexedChunks(n)
	return n, nil
}

// Builder builds the index once and hands the same *Index to every caller afterwards.
// A failed build is not remembered, the next Get tries again.
type Builder struct {
	DataDir       string
	Files         []string
	Collection    string
	Validate      func() error
	Credential    func() (string, error)
	NewClients    func(ctx context.Context, key string) (Clients, error)
	LoadDocuments LoadFunc
	VectorDB      vectorDB.DataProcessor

	buildMu sync.Mutex // serializes builds

	stateMu  sync.RWMutex
	index    *Index
	lastErr  error
	building bool
	builds   int

	logger *logger_i.Logger
}

func NewBuilder(dataDir string, providers Providers, db vectorDB.DataProcessor) *Builder {
	return &Builder{
		DataDir:       dataDir,
		Files:         config.InputFilePaths(dataDir),
		Collection:    config.IndexCollection,
		Validate:      providers.Validate,
		Credential:    providers.Credential,
		NewClients:    providers.NewClients,
		LoadDocuments: ingest.LoadDocuments,
		VectorDB:      db,
	}
}

// Builds reports how many build attempts were made
func (b *Builder) Builds() int {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.builds
}

// Ready returns the cached index without building it
func (b *Builder) Ready() (*Index, bool) {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.index, b.index != nil
}

type Status struct {
	Index     *Index
	Ready     bool
	Building  bool
	LastError error
}

func (b *Builder) Status() Status {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return Status{Index: b.index, Ready: b.index != nil, Building: b.building, LastError: b.lastErr}
}

func (b *Builder) Get(ctx context.Context) (*Index, error) {
	if idx, ok := b.Ready(); ok {
		metrics.IncrementIndexCacheHit()
		return idx, nil
	}

	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	// another caller may have finished the build while we waited
	if idx, ok := b.Ready(); ok {
		metrics.IncrementIndexCacheHit()
		return idx, nil
	}

	b.stateMu.Lock()
	b.builds++
	b.building = true
	b.stateMu.Unlock()

	idx, err := b.build(ctx)

	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.building = false
	b.lastErr = err
	if err != nil {
		metrics.CaptureIndexBuild("error", 0)
		return nil, err
	}
	metrics.CaptureIndexBuild("success", idx.Chunks())
	b.index = idx
	return idx, nil
}

func (b *Builder) build(ctx context.Context) (*Index, error) {
	if b.logger == nil {
		b.logger = logger_i.NewLogger("IndexBuilder")
	}
	log := b.logger.WithTrace(ctx).With("dataDir", b.DataDir, "collection", b.Collection)
	start := time.Now()

	if info, err := os.Stat(b.DataDir); err != nil || !info.IsDir() {
		log.Error("Data directory missing", "error", err)
		return nil, fmt.Errorf("%w: %s", ErrDataDirMissing, b.DataDir)
	}

	if b.Validate != nil {
		if err := b.Validate(); err != nil {
			log.Error("Model provider misconfigured", "error", err)
			return nil, err
		}
	}

	key, err := b.Credential()
	if err != nil || key == "" {
		log.Error("No model credential found", "error", err)
		if err == nil {
			return nil, ErrMissingCredential
		}
		return nil, fmt.Errorf("%w: %w", ErrMissingCredential, err)
	}

	clients, err := b.NewClients(ctx, key)
	if err != nil {
		log.Error("Model client construction failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrClientInit, err)
	}

	docs, err := b.LoadDocuments(ctx, b.Files)
	if err != nil {
		log.Error("Loading documents failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDocumentLoad, err)
	}
	if len(docs) == 0 {
		log.Error("Nothing to index", "files", b.Files)
		return nil, ErrNoDocuments
	}

	if err = b.VectorDB.ResetCollection(ctx, b.Collection, clients.Embedder.Dimension()); err != nil {
		log.Error("Could not prepare collection", "error", err)
		return nil, fmt.Errorf("prepare collection: %w", err)
	}

	pipeline := ingest.NewPipeline(b.Collection, clients.Embedder, b.VectorDB)
	n, err := pipeline.Ingest(ctx, docs...)
	if err != nil {
		log.Error("Indexing failed", "error", err)
		return nil, fmt.Errorf("index documents: %w", err)
	}

	idx := &Index{
		Collection: b.Collection,
		Documents:  len(docs),
		BuiltAt:    time.Now().UTC(),
		Embedder:   clients.Embedder,
		LLM:        clients.LLM,
		vectorDB:   b.VectorDB,
		pipeline:   pipeline,
	}
	idx.chunks.Store(int64(n))

	log.Info("Index built", "documents", len(docs), "chunks", n, "took", time.Since(start))
	return idx, nil
}
