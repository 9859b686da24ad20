package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docqa/config"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// InsufficientContextAnswer is returned without calling the chat backend when nothing was retrieved.
const InsufficientContextAnswer = "I don't have enough context from this document to answer that question. " +
	"Please make sure the document has been processed."

const maxSources = 3

// AnswerUseCase answers questions about one document from its retrieved chunks.
type AnswerUseCase struct {
	retriever *RetrieveUseCase
	chat      port.ChatClient
	prompt    PromptBuilder
	topK      int
	maxTokens int
	log       logger.Logger
}

// NewAnswerUseCase creates a new answer use case.
func NewAnswerUseCase(retriever *RetrieveUseCase, chat port.ChatClient, cfg config.AnswerConfig, log logger.Logger) *AnswerUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &AnswerUseCase{
		retriever: retriever,
		chat:      chat,
		prompt: PromptBuilder{
			SystemPrompt:    cfg.SystemPrompt,
			ContextChars:    cfg.ContextChars,
			HistoryMessages: cfg.HistoryMessages,
		},
		topK:      cfg.TopK,
		maxTokens: cfg.MaxTokens,
		log:       log.With("component", "answer"),
	}
}

// Answer retrieves context for question from docID and asks the chat backend.
func (u *AnswerUseCase) Answer(ctx context.Context, docID, question string, history []domain.ChatMessage) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.InvalidInputError("answer", "question is empty")
	}
	start := time.Now()

	results, err := u.retriever.Retrieve(ctx, docID, question, u.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Text
	}

	if len(contexts) == 0 {
		u.log.Info("No context retrieved", "doc_id", docID)
		return &domain.Answer{
			Answer:     InsufficientContextAnswer,
			Sources:    []string{},
			Confidence: domain.ConfidenceLow,
		}, nil
	}

	messages := u.prompt.Build(question, contexts, history)
	completion, err := u.chat.Chat(ctx, messages, domain.ChatOptions{MaxTokens: u.maxTokens})
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	sources := contexts
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}

	u.log.Info("Answered question", "doc_id", docID, "contexts", len(contexts),
		"partial", completion.Partial(), "duration", time.Since(start).Round(time.Millisecond))
	return &domain.Answer{
		Answer:     completion.Text,
		Sources:    sources,
		Confidence: ConfidenceFor(len(contexts)),
		NumSources: len(contexts),
		Partial:    completion.Partial(),
	}, nil
}

// ConfidenceFor grades an answer by how many contexts backed it.
func ConfidenceFor(contexts int) domain.Confidence {
	switch {
	case contexts >= 3:
		return domain.ConfidenceHigh
	case contexts >= 1:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
