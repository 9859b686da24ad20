package chunker

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
)

// DefaultLookback is how far back from a window's naive end the splitter searches for a sentence terminal.
const DefaultLookback = 100

// Splitter cuts text into overlapping windows of size runes, preferring to end each window right
// after a sentence terminal. A terminal sitting just past the window is kept, so a window can be
// size+1 runes wide.
type Splitter struct {
	size     int
	overlap  int
	lookback int
}

func NewSplitter(size, overlap, lookback int) (*Splitter, error) {
	if size <= 0 {
		return nil, domain.ConfigError("chunker", fmt.Sprintf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, domain.ConfigError("chunker", fmt.Sprintf("overlap %d must be in [0, %d)", overlap, size))
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Splitter{size: size, overlap: overlap, lookback: lookback}, nil
}

func (s *Splitter) Split(text string) ([]domain.Chunk, error) {
	runes := []rune(text)
	n := len(runes)

	var chunks []domain.Chunk
	start := 0
	for start < n {
		end := start + s.size
		if end < n {
			end = s.snap(runes, start, end)
		} else {
			end = n
		}

		trimmed := strings.TrimSpace(string(runes[start:end]))
		if trimmed != "" {
			chunks = append(chunks, domain.Chunk{
				ID:     len(chunks),
				Text:   trimmed,
				Start:  start,
				End:    end,
				Length: len([]rune(trimmed)),
			})
		}

		if end >= n {
			break
		}
		next := end - s.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// snap moves end to just after the last sentence terminal in (end-lookback, end], never reaching start.
// runes[end] is scanned too, which is why a window may grow by one.
func (s *Splitter) snap(runes []rune, start, end int) int {
	floor := end - s.lookback
	if floor < start {
		floor = start
	}
	for i := end; i > floor; i-- {
		if isTerminal(runes[i]) {
			return i + 1
		}
	}
	return end
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
