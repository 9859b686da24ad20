package usecase

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"docqa/internal/domain"
)

var testVocabulary = []string{"the", "cat", "sat", "dog", "ran", "birds", "fly", "south"}

// vocabEmbedder maps text to word counts over a fixed vocabulary.
type vocabEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *vocabEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(testVocabulary))
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
		for _, w := range words {
			for j, v := range testVocabulary {
				if w == v {
					vec[j]++
				}
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (e *vocabEmbedder) Dimension() int    { return len(testVocabulary) }
func (e *vocabEmbedder) ModelName() string { return "vocab" }

type fakeChat struct {
	mu         sync.Mutex
	calls      int
	lastMsgs   []domain.ChatMessage
	lastOpts   domain.ChatOptions
	completion domain.Completion
	err        error
}

func (c *fakeChat) Chat(_ context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (domain.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastMsgs = messages
	c.lastOpts = opts
	if c.err != nil {
		return domain.Completion{State: domain.StateFailed}, c.err
	}
	return c.completion, nil
}

func (c *fakeChat) ModelName() string { return "fake" }
