package usecase

import (
	"strconv"
	"strings"

	"docqa/internal/domain"
)

// PromptBuilder assembles a bounded chat prompt from retrieved contexts.
type PromptBuilder struct {
	SystemPrompt    string
	ContextChars    int
	HistoryMessages int
}

// Build returns the system message, the trimmed history and a user message holding the
// numbered contexts followed by the question.
func (b PromptBuilder) Build(question string, contexts []string, history []domain.ChatMessage) []domain.ChatMessage {
	kept := TrimHistory(history, b.HistoryMessages)
	messages := make([]domain.ChatMessage, 0, len(kept)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: b.SystemPrompt})
	messages = append(messages, kept...)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: FormatContexts(contexts, b.ContextChars) + "\n\nQ: " + question,
	})
	return messages
}

// FormatContexts numbers each context from 1, cut to limit characters, one per line.
func FormatContexts(contexts []string, limit int) string {
	var sb strings.Builder
	for i, c := range contexts {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("] ")
		sb.WriteString(Truncate(c, limit))
	}
	return sb.String()
}

// Truncate returns the first limit characters of s. A non-positive limit keeps s whole.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// TrimHistory keeps the last n messages of history in order, whatever their role.
func TrimHistory(history []domain.ChatMessage, n int) []domain.ChatMessage {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return append([]domain.ChatMessage(nil), history...)
}
