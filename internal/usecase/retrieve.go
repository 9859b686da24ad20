package usecase

import (
	"context"
	"fmt"

	"docqa/internal/adapter/cache"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// RetrieveUseCase embeds a question and searches a document's collection.
type RetrieveUseCase struct {
	embedder port.Embedder
	index    port.DocumentIndex
	cache    *cache.QueryCache
}

// NewRetrieveUseCase creates a new retrieve use case. cache may be nil.
func NewRetrieveUseCase(embedder port.Embedder, index port.DocumentIndex, cache *cache.QueryCache) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder: embedder,
		index:    index,
		cache:    cache,
	}
}

// Retrieve returns up to topK chunks of docID closest to question, nearest first.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, docID, question string, topK int) ([]domain.RetrievalResult, error) {
	if u.cache != nil {
		if results, hit := u.cache.Get(docID, question, topK); hit {
			return results, nil
		}
	}

	vectors, err := u.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, domain.UnexpectedResponseError("retrieve", "embedder returned no vector for the question")
	}

	results, err := u.index.Search(ctx, docID, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", docID, err)
	}

	if u.cache != nil {
		u.cache.Put(docID, question, topK, results)
	}
	return results, nil
}
