package pgvectorDB

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var logger *logger_i.Logger
var poolInstance *pgxpool.Pool
var once sync.Once

type Store struct {
	pool *pgxpool.Pool
}

// GetPgvectorStore returns nil when postgres cannot be reached
func GetPgvectorStore(ctx context.Context) *Store {
	once.Do(func() {
		logger = logger_i.NewLogger("Pgvector")
		pool, err := newPool(ctx, config.EnvOrDefault("PG_URL", config.PostgresURL))
		if err != nil {
			logger.Error("Postgres is offline", "error", err)
			return
		}
		poolInstance = pool
		go closePool(ctx, pool)
	})
	if poolInstance == nil {
		return nil
	}
	return &Store{pool: poolInstance}
}

func newPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}
	return pool, nil
}

func closePool(ctx context.Context, pool *pgxpool.Pool) {
	<-ctx.Done()
	logger.Info("Closing postgres pool")
	pool.Close()
}

func (s *Store) CreateCollection(ctx context.Context, collectionName string, dimension int) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS doc_chunks (
			chunk_id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			source_doc_id TEXT NOT NULL,
			doc_name TEXT NOT NULL,
			content_type TEXT NOT NULL,
			page_num INTEGER NOT NULL,
			chunk_order INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding_model TEXT NOT NULL,
			ingested_at TIMESTAMPTZ NOT NULL,
			embedding vector(%d) NOT NULL
		)`, dimension))
	if err != nil {
		return fmt.Errorf("failed to create doc_chunks table: %w", err)
	}
	_, err = s.pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS doc_chunks_collection_idx ON doc_chunks (collection)")
	return err
}

func (s *Store) ResetCollection(ctx context.Context, collectionName string, dimension int) error {
	if err := s.CreateCollection(ctx, collectionName, dimension); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM doc_chunks WHERE collection = $1", collectionName); err != nil {
		return fmt.Errorf("failed to reset collection %s: %w", collectionName, err)
	}
	return nil
}

func (s *Store) UpsertBatch(ctx context.Context, collectionName string, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(`
			INSERT INTO doc_chunks
			(chunk_id, collection, source_doc_id, doc_name, content_type, page_num, chunk_order, content, embedding_model, ingested_at, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (chunk_id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			chunk.ChunkId, collectionName, chunk.Doc.Id, chunk.Doc.Name, string(chunk.Doc.ContentType),
			chunk.PageNum, chunk.ChunkPageOrder, chunk.Chunk, chunk.EmbeddingModel,
			chunk.Doc.LastIngestTimestamp, pgvector.NewVector(vectors[i]))
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("pgvector upsert failed: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collectionName string, vectorVal []float32, limit int) ([]commonModels.ScoredChunk, error) {
	loggr := logger.WithTrace(ctx)
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, source_doc_id, doc_name, content_type, page_num, chunk_order, content, embedding_model, ingested_at,
		1 - (embedding <=> $1) AS similarity
		FROM doc_chunks
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(vectorVal), collectionName, limit)
	if err != nil {
		loggr.Error("Error querying pgvector", "error", err)
		return nil, fmt.Errorf("failed to search similar chunks: %w", err)
	}
	defer rows.Close()

	var results []commonModels.ScoredChunk
	for rows.Next() {
		var (
			hit         commonModels.ScoredChunk
			contentType string
			similarity  float64
		)
		if err = rows.Scan(&hit.ChunkId, &hit.Doc.Id, &hit.Doc.Name, &contentType, &hit.PageNum,
			&hit.ChunkPageOrder, &hit.Chunk, &hit.EmbeddingModel, &hit.Doc.LastIngestTimestamp, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		hit.Doc.ContentType = commonModels.DocType(contentType)
		hit.Score = float32(similarity)
		results = append(results, hit)
	}

	loggr.Debug("Found matches", "count", len(results))
	return results, rows.Err()
}
