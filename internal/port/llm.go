package port

import (
	"context"

	"docqa/internal/domain"
)

// ChatClient invokes a text-generation backend.
type ChatClient interface {
	// Chat sends messages and returns the accumulated completion. A completion salvaged
	// from a timed-out stream is returned without error.
	Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (domain.Completion, error)

	// ModelName returns the default chat model.
	ModelName() string
}
