package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.etcd.io/bbolt"

	"docqa/internal/domain"
)

var (
	bucketChunks = []byte("chunks")
	keyMeta      = []byte("meta")
)

const defaultCollectionCache = 64

// BoltIndex persists one bucket per document collection in a bbolt file.
// Decoded collections are cached for search and invalidated on every write.
type BoltIndex struct {
	db    *bbolt.DB
	locks *KeyedMutex
	cache *lru.Cache[string, *collection]

	// cacheMu orders cache fills against invalidations so a search that read
	// before a write cannot re-cache the old snapshot.
	cacheMu sync.Mutex
	gen     uint64
}

type collectionMeta struct {
	DocID     string    `json:"doc_id"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type storedChunk struct {
	Text     string            `json:"text"`
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

type collection struct {
	meta    collectionMeta
	entries []Entry
}

func NewBoltIndex(path string, cacheSize int) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSchema)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema bucket: %w", err)
	}

	if cacheSize <= 0 {
		cacheSize = defaultCollectionCache
	}
	cache, err := lru.New[string, *collection](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init collection cache: %w", err)
	}

	return &BoltIndex{db: db, locks: NewKeyedMutex(), cache: cache}, nil
}

func (s *BoltIndex) Upsert(ctx context.Context, docID string, chunks []domain.Chunk, vectors [][]float32, metadata []map[string]string) error {
	dim, err := ValidateUpsert(docID, chunks, vectors, metadata)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := CollectionName(docID)
	unlock := s.locks.Lock(name)
	defer unlock()
	defer s.invalidate(name)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		chunksBucket, err := b.CreateBucketIfNotExists(bucketChunks)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		meta := collectionMeta{DocID: docID, Dimension: dim, CreatedAt: now}
		if data := b.Get(keyMeta); data != nil {
			var existing collectionMeta
			if err := json.Unmarshal(data, &existing); err != nil {
				return fmt.Errorf("corrupt collection metadata for %s: %w", name, err)
			}
			if existing.Dimension != dim {
				return domain.InvalidInputError("index.upsert",
					fmt.Sprintf("vector dimension mismatch: collection has %d, got %d", existing.Dimension, dim))
			}
			meta.CreatedAt = existing.CreatedAt
		}
		meta.UpdatedAt = now
		metaData, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := b.Put(keyMeta, metaData); err != nil {
			return err
		}

		for i, chunk := range chunks {
			var extra map[string]string
			if metadata != nil {
				extra = metadata[i]
			}
			data, err := json.Marshal(storedChunk{
				Text:     chunk.Text,
				Vector:   vectors[i],
				Metadata: EntryMetadata(chunk, extra),
			})
			if err != nil {
				return err
			}
			if err := chunksBucket.Put(chunkKey(chunk.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltIndex) Search(ctx context.Context, docID string, query []float32, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}
	if len(query) == 0 {
		return nil, domain.InvalidInputError("index.search", "query vector is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coll, err := s.load(CollectionName(docID))
	if err != nil {
		return nil, err
	}
	if coll == nil || len(coll.entries) == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if coll.meta.Dimension != len(query) {
		return nil, domain.InvalidInputError("index.search",
			fmt.Sprintf("query dimension mismatch: collection has %d, got %d", coll.meta.Dimension, len(query)))
	}
	return Rank(coll.entries, query, k), nil
}

// load returns the decoded collection, or nil when it does not exist.
func (s *BoltIndex) load(name string) (*collection, error) {
	if coll, ok := s.cache.Get(name); ok {
		return coll, nil
	}
	s.cacheMu.Lock()
	gen := s.gen
	s.cacheMu.Unlock()

	var coll *collection
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		coll = &collection{}
		if data := b.Get(keyMeta); data != nil {
			if err := json.Unmarshal(data, &coll.meta); err != nil {
				return fmt.Errorf("corrupt collection metadata for %s: %w", name, err)
			}
		}
		chunksBucket := b.Bucket(bucketChunks)
		if chunksBucket == nil {
			return nil
		}
		return chunksBucket.ForEach(func(k, v []byte) error {
			var stored storedChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt chunk %d in %s: %w", binary.BigEndian.Uint64(k), name, err)
			}
			coll.entries = append(coll.entries, Entry{
				ChunkID:  int(binary.BigEndian.Uint64(k)),
				Text:     stored.Text,
				Vector:   stored.Vector,
				Metadata: stored.Metadata,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if coll != nil {
		s.cacheMu.Lock()
		if s.gen == gen {
			s.cache.Add(name, coll)
		}
		s.cacheMu.Unlock()
	}
	return coll, nil
}

func (s *BoltIndex) invalidate(name string) {
	s.cacheMu.Lock()
	s.gen++
	s.cache.Remove(name)
	s.cacheMu.Unlock()
}

func (s *BoltIndex) Exists(_ context.Context, docID string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket([]byte(CollectionName(docID))) != nil
		return nil
	})
	return exists, err
}

func (s *BoltIndex) Delete(_ context.Context, docID string) error {
	name := CollectionName(docID)
	unlock := s.locks.Lock(name)
	defer unlock()
	defer s.invalidate(name)

	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(name))
	})
}

func (s *BoltIndex) Count(_ context.Context, docID string) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(CollectionName(docID)))
		if b == nil {
			return nil
		}
		if chunksBucket := b.Bucket(bucketChunks); chunksBucket != nil {
			n = chunksBucket.Stats().KeyN
		}
		return nil
	})
	return n, err
}

func (s *BoltIndex) List(_ context.Context) ([]domain.CollectionInfo, error) {
	var infos []domain.CollectionInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			if !strings.HasPrefix(string(name), CollectionPrefix) {
				return nil
			}
			info := domain.CollectionInfo{Name: string(name)}
			if data := b.Get(keyMeta); data != nil {
				var meta collectionMeta
				if err := json.Unmarshal(data, &meta); err != nil {
					return fmt.Errorf("corrupt collection metadata for %s: %w", name, err)
				}
				info.DocID = meta.DocID
				info.Dimension = meta.Dimension
				info.CreatedAt = meta.CreatedAt
			}
			if chunksBucket := b.Bucket(bucketChunks); chunksBucket != nil {
				info.Count = chunksBucket.Stats().KeyN
			}
			infos = append(infos, info)
			return nil
		})
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].DocID < infos[j].DocID })
	return infos, err
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}

func chunkKey(id int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
