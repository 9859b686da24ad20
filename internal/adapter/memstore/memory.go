// Package memstore is an in-process DocumentIndex for ephemeral runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docqa/internal/adapter/store"
	"docqa/internal/domain"
)

type MemoryIndex struct {
	mu          sync.RWMutex
	locks       *store.KeyedMutex
	collections map[string]*memCollection
}

type memCollection struct {
	docID     string
	dimension int
	createdAt time.Time
	entries   map[int]store.Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		locks:       store.NewKeyedMutex(),
		collections: make(map[string]*memCollection),
	}
}

func (s *MemoryIndex) Upsert(ctx context.Context, docID string, chunks []domain.Chunk, vectors [][]float32, metadata []map[string]string) error {
	dim, err := store.ValidateUpsert(docID, chunks, vectors, metadata)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := store.CollectionName(docID)
	unlock := s.locks.Lock(name)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[name]
	if !ok {
		coll = &memCollection{
			docID:     docID,
			dimension: dim,
			createdAt: time.Now().UTC(),
			entries:   make(map[int]store.Entry),
		}
		s.collections[name] = coll
	} else if coll.dimension != dim {
		return domain.InvalidInputError("index.upsert",
			fmt.Sprintf("vector dimension mismatch: collection has %d, got %d", coll.dimension, dim))
	}

	for i, chunk := range chunks {
		var extra map[string]string
		if metadata != nil {
			extra = metadata[i]
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		coll.entries[chunk.ID] = store.Entry{
			ChunkID:  chunk.ID,
			Text:     chunk.Text,
			Vector:   vec,
			Metadata: store.EntryMetadata(chunk, extra),
		}
	}
	return nil
}

func (s *MemoryIndex) Search(_ context.Context, docID string, query []float32, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}
	if len(query) == 0 {
		return nil, domain.InvalidInputError("index.search", "query vector is empty")
	}

	s.mu.RLock()
	coll, ok := s.collections[store.CollectionName(docID)]
	if !ok || len(coll.entries) == 0 {
		s.mu.RUnlock()
		return []domain.RetrievalResult{}, nil
	}
	if coll.dimension != len(query) {
		s.mu.RUnlock()
		return nil, domain.InvalidInputError("index.search",
			fmt.Sprintf("query dimension mismatch: collection has %d, got %d", coll.dimension, len(query)))
	}
	entries := make([]store.Entry, 0, len(coll.entries))
	for _, e := range coll.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	return store.Rank(entries, query, k), nil
}

func (s *MemoryIndex) Exists(_ context.Context, docID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[store.CollectionName(docID)]
	return ok, nil
}

func (s *MemoryIndex) Delete(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, store.CollectionName(docID))
	return nil
}

func (s *MemoryIndex) Count(_ context.Context, docID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if coll, ok := s.collections[store.CollectionName(docID)]; ok {
		return len(coll.entries), nil
	}
	return 0, nil
}

func (s *MemoryIndex) List(_ context.Context) ([]domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]domain.CollectionInfo, 0, len(s.collections))
	for name, coll := range s.collections {
		infos = append(infos, domain.CollectionInfo{
			Name:      name,
			DocID:     coll.docID,
			Dimension: coll.dimension,
			Count:     len(coll.entries),
			CreatedAt: coll.createdAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].DocID < infos[j].DocID })
	return infos, nil
}

func (s *MemoryIndex) Close() error {
	return nil
}
