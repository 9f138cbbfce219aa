package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var logger *logger_i.Logger
var qdrantInstance *qdrant.Client
var once sync.Once

type ClientHolder struct {
	QObj *qdrant.Client
}

// GetQdrantClient returns nil when qdrant cannot be reached
func GetQdrantClient(ctx context.Context) *ClientHolder {

	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient(ctx)
		if res != nil {
			qdrantInstance = res
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: qdrantInstance,
	}
}

func newClient(ctx context.Context) *qdrant.Client {

	host := os.Getenv("QDRANT_HOST")
	port, er := strconv.Atoi(os.Getenv("QDRANT_PORT"))

	if host == "" || er != nil {
		host = config.QdrantHost
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err = client.HealthCheck(healthCtx); err != nil {
		logger.Error("Qdrant is offline", "host", host, "port", port, "error", err)
		_ = client.Close()
		return nil
	}

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) Search(ctx context.Context, collectionName string, vectorFloat []float32, limit int) ([]commonModels.ScoredChunk, error) {
	loggr := logger.WithTrace(ctx)
	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vectorFloat...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})

	if err != nil {
		loggr.Error("Error querying Qdrant", "error", err)
		return nil, err
	}

	matches := make([]commonModels.ScoredChunk, 0, len(result))
	for _, hit := range result {
		p := hit.Payload
		matches = append(matches, commonModels.ScoredChunk{
			DocChunk: commonModels.DocChunk{
				Doc: commonModels.Document{
					Id:                  p["source_doc_id"].GetStringValue(),
					Name:                p["doc_name"].GetStringValue(),
					LastIngestTimestamp: time.Unix(p["ingested_at"].GetIntegerValue(), 0).UTC(),
					ContentType:         commonModels.DocType(p["content_type"].GetStringValue()),
				},
				ChunkId:        p["chunk_id"].GetStringValue(),
				Chunk:          p["content"].GetStringValue(),
				PageNum:        int(p["page_num"].GetIntegerValue()),
				ChunkPageOrder: int(p["chunk_order"].GetIntegerValue()),
				EmbeddingModel: p["embedding_model"].GetStringValue(),
			},
			Score: hit.Score,
		})
	}

	loggr.Debug("Found matches", "count", len(matches))
	return matches, nil
}

func (db *ClientHolder) CreateCollection(ctx context.Context, collectionName string, dimension int) error {
	return createCollection(ctx, db.QObj, collectionName, dimension)
}

func (db *ClientHolder) ResetCollection(ctx context.Context, collectionName string, dimension int) error {
	exists, err := db.QObj.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		if err = db.QObj.DeleteCollection(ctx, collectionName); err != nil {
			return fmt.Errorf("qdrant drop collection: %w", err)
		}
	}
	return createCollection(ctx, db.QObj, collectionName, dimension)
}

func (db *ClientHolder) UpsertBatch(ctx context.Context, collectionName string, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(chunks))

	for i, chunk := range chunks {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ChunkId),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":         chunk.Chunk,
				"page_num":        chunk.PageNum,
				"source_doc_id":   chunk.Doc.Id,
				"doc_name":        chunk.Doc.Name,
				"content_type":    string(chunk.Doc.ContentType),
				"chunk_order":     chunk.ChunkPageOrder,
				"chunk_id":        chunk.ChunkId,
				"embedding_model": chunk.EmbeddingModel,
				"ingested_at":     chunk.Doc.LastIngestTimestamp.Unix(),
			}),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})

	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}

	return nil

}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension int) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
