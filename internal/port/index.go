package port

import (
	"context"

	"docqa/internal/domain"
)

// DocumentIndex stores chunk vectors in one collection per document identifier.
type DocumentIndex interface {
	// Upsert writes every chunk with its vector. metadata is optional and, when set, parallel to chunks.
	Upsert(ctx context.Context, docID string, chunks []domain.Chunk, vectors [][]float32, metadata []map[string]string) error

	// Search returns up to k chunks closest to query. A missing or empty collection yields no results.
	Search(ctx context.Context, docID string, query []float32, k int) ([]domain.RetrievalResult, error)

	Exists(ctx context.Context, docID string) (bool, error)

	Delete(ctx context.Context, docID string) error

	Count(ctx context.Context, docID string) (int, error)

	List(ctx context.Context) ([]domain.CollectionInfo, error)

	Close() error
}
