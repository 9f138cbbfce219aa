package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/customHttpClient"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Client struct {
	client openai.Client
	model  string
	logger *logger_i.Logger
}

func New(modelName string, apikey string) (*Client, error) {
	if apikey == "" {
		return nil, errors.New("openai embedding: empty api key")
	}
	client := openai.NewClient(
		option.WithAPIKey(apikey),
		option.WithHTTPClient(customHttpClient.GetPooledClient()),
	)
	return &Client{client: client, model: modelName, logger: logger_i.NewLogger("openai_embedding")}, nil
}

func (c *Client) Dimension() int {
	return int(config.EmbeddingOutputDimensionality)
}

func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx).With("chunks", len(chunks))
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(config.EmbeddingOutputDimensionality)),
	})
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err)
		return nil, err
	}
	if len(resp.Data) != len(chunks) {
		return nil, fmt.Errorf("openai embedding: got %d vectors for %d inputs", len(resp.Data), len(chunks))
	}

	vectors := make([][]float32, len(chunks))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(chunks) {
			return nil, fmt.Errorf("openai embedding: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}
