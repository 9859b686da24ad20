package port

import "docqa/internal/domain"

// Splitter breaks document text into ordered, overlapping chunks.
type Splitter interface {
	Split(text string) ([]domain.Chunk, error)
}
