package memoryDB

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/akolanti/rightsbot/internal/domain/commonModels"
)

var ErrUnknownCollection = errors.New("collection does not exist")

type entry struct {
	chunk  commonModels.DocChunk
	vector []float32
	norm   float64
}

type collection struct {
	dimension int
	entries   map[string]entry
}

// Store is a brute force cosine index kept in process memory
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) CreateCollection(ctx context.Context, collectionName string, dimension int) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collectionName]; !ok {
		s.collections[collectionName] = &collection{dimension: dimension, entries: make(map[string]entry)}
	}
	return nil
}

func (s *Store) ResetCollection(ctx context.Context, collectionName string, dimension int) error {
	s.mu.Lock()
	delete(s.collections, collectionName)
	s.mu.Unlock()
	return s.CreateCollection(ctx, collectionName, dimension)
}

func (s *Store) UpsertBatch(ctx context.Context, collectionName string, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collectionName)
	}
	for i, chunk := range chunks {
		if len(vectors[i]) != c.dimension {
			return fmt.Errorf("vector %d has dimension %d, collection expects %d", i, len(vectors[i]), c.dimension)
		}
		c.entries[chunk.ChunkId] = entry{chunk: chunk, vector: vectors[i], norm: norm(vectors[i])}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collectionName string, vectorVal []float32, limit int) ([]commonModels.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collectionName)
	}
	if len(vectorVal) != c.dimension {
		return nil, fmt.Errorf("query has dimension %d, collection expects %d", len(vectorVal), c.dimension)
	}

	queryNorm := norm(vectorVal)
	results := make([]commonModels.ScoredChunk, 0, len(c.entries))
	for _, e := range c.entries {
		results = append(results, commonModels.ScoredChunk{
			DocChunk: e.chunk,
			Score:    cosine(vectorVal, queryNorm, e.vector, e.norm),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ChunkId < results[j].ChunkId
		}
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Len reports the number of chunks held in a collection
func (s *Store) Len(collectionName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[collectionName]; ok {
		return len(c.entries)
	}
	return 0
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, normA float64, b []float32, normB float64) float32 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (normA * normB))
}
