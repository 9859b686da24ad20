package store

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"sort"

	"docqa/internal/domain"
)

// CollectionPrefix starts every collection name.
const CollectionPrefix = "doc_"

// CollectionName derives the collection for a document identifier. The same identifier
// always resolves to the same collection.
func CollectionName(docID string) string {
	sum := md5.Sum([]byte(docID))
	return CollectionPrefix + hex.EncodeToString(sum[:])
}

// Entry is one stored chunk with its vector.
type Entry struct {
	ChunkID  int
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// Rank returns the k entries nearest to query by cosine distance, nearest first.
// k is clamped to len(entries); ties keep chunk order.
func Rank(entries []Entry, query []float32, k int) []domain.RetrievalResult {
	if k <= 0 || len(entries) == 0 {
		return []domain.RetrievalResult{}
	}

	scored := make([]domain.RetrievalResult, len(entries))
	for i, e := range entries {
		scored[i] = domain.RetrievalResult{
			ChunkID:  e.ChunkID,
			Text:     e.Text,
			Distance: 1 - cosineSimilarity(query, e.Vector),
			Metadata: e.Metadata,
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Distance != scored[j].Distance {
			return scored[i].Distance < scored[j].Distance
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

// cosineSimilarity returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ValidateUpsert checks the shape of an upsert and returns the shared vector dimension.
func ValidateUpsert(docID string, chunks []domain.Chunk, vectors [][]float32, metadata []map[string]string) (int, error) {
	const op = "index.upsert"
	if docID == "" {
		return 0, domain.InvalidInputError(op, "document id is required")
	}
	if len(chunks) != len(vectors) {
		return 0, domain.InvalidInputError(op, "chunks and vectors must have the same length")
	}
	if metadata != nil && len(metadata) != len(chunks) {
		return 0, domain.InvalidInputError(op, "metadata must be empty or match the number of chunks")
	}
	dim := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, domain.InvalidInputError(op, "empty vector for chunk "+itoa(chunks[i].ID))
		}
		if dim == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return 0, domain.InvalidInputError(op, "vectors have inconsistent dimensions")
		}
	}
	return dim, nil
}

// EntryMetadata merges caller metadata with the chunk's position fields.
func EntryMetadata(chunk domain.Chunk, extra map[string]string) map[string]string {
	md := make(map[string]string, len(extra)+3)
	for k, v := range extra {
		md[k] = v
	}
	md["chunk_index"] = itoa(chunk.ID)
	md["start_offset"] = itoa(chunk.Start)
	md["end_offset"] = itoa(chunk.End)
	return md
}
