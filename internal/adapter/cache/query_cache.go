// Package cache holds recent retrieval results keyed by document, question and k.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"docqa/internal/domain"
)

const (
	defaultSize = 100
	defaultTTL  = 5 * time.Minute
)

type QueryCache struct {
	lru *expirable.LRU[string, []domain.RetrievalResult]
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = defaultSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &QueryCache{
		lru: expirable.NewLRU[string, []domain.RetrievalResult](maxSize, nil, ttl),
	}
}

func docPrefix(docID string) string {
	sum := sha256.Sum256([]byte(docID))
	return hex.EncodeToString(sum[:8]) + ":"
}

func cacheKey(docID, query string, topK int) string {
	sum := sha256.Sum256([]byte(query))
	return docPrefix(docID) + strconv.Itoa(topK) + ":" + hex.EncodeToString(sum[:16])
}

func (c *QueryCache) Get(docID, query string, topK int) ([]domain.RetrievalResult, bool) {
	results, ok := c.lru.Get(cacheKey(docID, query, topK))
	if !ok {
		return nil, false
	}
	return cloneResults(results), true
}

func (c *QueryCache) Put(docID, query string, topK int, results []domain.RetrievalResult) {
	c.lru.Add(cacheKey(docID, query, topK), cloneResults(results))
}

// Invalidate drops every cached result for docID.
func (c *QueryCache) Invalidate(docID string) {
	prefix := docPrefix(docID)
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

func (c *QueryCache) Purge() {
	c.lru.Purge()
}

func (c *QueryCache) Size() int {
	return c.lru.Len()
}

func cloneResults(src []domain.RetrievalResult) []domain.RetrievalResult {
	dst := make([]domain.RetrievalResult, len(src))
	copy(dst, src)
	return dst
}
