package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/customHttpClient"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"google.golang.org/genai"
)

const (
	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
	retryDelay   = 5 * time.Second
)

var dimension = config.EmbeddingOutputDimensionality

type Client struct {
	genAi  *genai.Client
	model  string
	logger *logger_i.Logger
}

func New(ctx context.Context, modelName string, apikey string) (*Client, error) {
	if apikey == "" {
		return nil, errors.New("google embedding: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apikey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.GetPooledClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("google embedding client: %w", err)
	}
	logger := logger_i.NewLogger("google_embedding")
	logger.Info("Google Embedding client created", "model", modelName)
	return &Client{genAi: c, model: modelName, logger: logger}, nil
}

func (c *Client) Dimension() int {
	return int(dimension)
}

func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := c.logger.WithTrace(ctx)
	log.Debug("embedding query", "length", len(query))

	res, err := c.callWithRetry(ctx, genai.Text(query), taskQuery, log)
	if err != nil {
		log.Error("Error getting query embedding from Google", "error", err)
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return nil, errors.New("google embedding: empty response")
	}
	return res.Embeddings[0].Values, nil
}

func (c *Client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx).With("chunks", len(chunks))

	res, err := c.callWithRetry(ctx, getContent(chunks), taskDocument, log)
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, err
	}
	return vectorsFrom(res), nil
}

// callWithRetry retries once after a back-off when the quota is exhausted
func (c *Client) callWithRetry(ctx context.Context, content []*genai.Content, task string, log *logger_i.Logger) (*genai.EmbedContentResponse, error) {
	res, err := c.doCall(ctx, content, task)
	if err == nil || !doRetry(err, log) {
		return res, err
	}

	log.Debug("Retrying after back-off", "delay", retryDelay)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}
	return c.doCall(ctx, content, task)
}

func (c *Client) doCall(ctx context.Context, content []*genai.Content, task string) (*genai.EmbedContentResponse, error) {
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: task})
}
