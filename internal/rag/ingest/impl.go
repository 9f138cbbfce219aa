package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/rightsbot/internal/adapter/utils"
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/rag/embedding"
	"github.com/akolanti/rightsbot/internal/rag/vectorDB"
)

var ErrEmbeddingMismatch = errors.New("embedding count does not match chunk count")

func PrepareChunks(pages []Page, doc commonModels.Document, chunkSize int, overlap int) []commonModels.DocChunk {
	var allChunks []commonModels.DocChunk

	for _, page := range pages {
		stringChunks := splitTextIntoChunks(page.Content, chunkSize, overlap)

		for i, text := range stringChunks {
			allChunks = append(allChunks, commonModels.DocChunk{
				Doc:            doc,
				ChunkId:        utils.GetNewUUID(),
				Chunk:          text,
				PageNum:        page.Number,
				ChunkPageOrder: i,
			})
		}
	}

	return allChunks
}

// Pipeline chunks, embeds and stores documents into one collection
type Pipeline struct {
	Collection   string
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Embedder     embedding.Embedder
	VectorDB     vectorDB.DataProcessor
}

func NewPipeline(collection string, e embedding.Embedder, db vectorDB.DataProcessor) *Pipeline {
	return &Pipeline{
		Collection:   collection,
		ChunkSize:    config.ChunkSize,
		ChunkOverlap: config.ChunkOverlap,
		BatchSize:    config.EmbeddingBatchSize,
		Embedder:     e,
		VectorDB:     db,
	}
}

// Ingest returns the number of chunks stored
func (p *Pipeline) Ingest(ctx context.Context, docs ...LoadedDocument) (int, error) {
	log := logger.WithTrace(ctx).With("collection", p.Collection)

	var chunks []commonModels.DocChunk
	for _, d := range docs {
		docChunks := PrepareChunks(d.Pages, d.Doc, p.ChunkSize, p.ChunkOverlap)
		log.Debug("Prepared chunks", "doc", d.Doc.Name, "pages", len(d.Pages), "chunks", len(docChunks))
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := p.BatchIngest(ctx, chunks); err != nil {
		return 0, err
	}
	log.Info("Ingested documents", "documents", len(docs), "chunks", len(chunks))
	return len(chunks), nil
}

func (p *Pipeline) BatchIngest(ctx context.Context, chunks []commonModels.DocChunk) error {
	log := logger.WithTrace(ctx)

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = config.EmbeddingBatchSize
	}
	model := p.Embedder.ModelName()

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		currentBatch := make([]commonModels.DocChunk, 0, end-i)
		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			if c.Chunk == "" {
				continue
			}
			c.EmbeddingModel = model
			currentBatch = append(currentBatch, c)
			texts = append(texts, c.Chunk)
		}
		if len(texts) == 0 {
			continue
		}

		log.Debug("Starting embedding call", "batch", i/batchSize, "texts", len(texts))
		vectors, err := p.Embedder.BatchEmbedding(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch failed: %w", err)
		}
		if len(vectors) != len(currentBatch) {
			return fmt.Errorf("%w: %d vectors for %d chunks", ErrEmbeddingMismatch, len(vectors), len(currentBatch))
		}

		if err = p.VectorDB.UpsertBatch(ctx, p.Collection, currentBatch, vectors); err != nil {
			return fmt.Errorf("upserting to vector store failed: %w", err)
		}
	}

	return nil
}
