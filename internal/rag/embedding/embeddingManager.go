package embedding

import "context"

type Embedder interface {
	// GetEmbedding embeds a search query
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	// BatchEmbedding embeds document chunks, one vector per chunk in order
	BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}
