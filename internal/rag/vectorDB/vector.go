package vectorDB

import (
	"context"

	"github.com/akolanti/rightsbot/internal/domain/commonModels"
)

type DataProcessor interface {
	// Search returns at most limit chunks, most similar first
	Search(ctx context.Context, collectionName string, vectorVal []float32, limit int) ([]commonModels.ScoredChunk, error)

	CreateCollection(ctx context.Context, collectionName string, dimension int) error
	// ResetCollection drops and recreates the collection so a rebuild starts empty
	ResetCollection(ctx context.Context, collectionName string, dimension int) error
	UpsertBatch(ctx context.Context, collectionName string, chunks []commonModels.DocChunk, vectors [][]float32) error
}
