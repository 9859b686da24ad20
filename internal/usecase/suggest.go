package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const (
	suggestSampleChars = 5000
	suggestCount       = 5
	suggestMaxTokens   = 300
	suggestTemperature = 0.7

	suggestSystemPrompt = "You are an educational assistant helping students learn."
	suggestPrompt       = `Based on this content, suggest 5 interesting questions a reader might ask:

Content:
%s

Generate 5 specific, thoughtful questions that would help a reader understand this material better.
Format: Return only the questions, one per line, without numbering.`
)

// SuggestUseCase asks the chat backend for questions worth asking about a text sample.
type SuggestUseCase struct {
	chat port.ChatClient
}

func NewSuggestUseCase(chat port.ChatClient) *SuggestUseCase {
	return &SuggestUseCase{chat: chat}
}

// Suggest returns up to five questions about sample.
func (u *SuggestUseCase) Suggest(ctx context.Context, sample string) ([]string, error) {
	sample = Truncate(strings.TrimSpace(sample), suggestSampleChars)
	if sample == "" {
		return nil, domain.InvalidInputError("suggest", "sample text is empty")
	}

	temperature := suggestTemperature
	completion, err := u.chat.Chat(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: suggestSystemPrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf(suggestPrompt, sample)},
	}, domain.ChatOptions{Temperature: &temperature, MaxTokens: suggestMaxTokens})
	if err != nil {
		return nil, fmt.Errorf("failed to suggest questions: %w", err)
	}

	questions := make([]string, 0, suggestCount)
	for _, line := range strings.Split(completion.Text, "\n") {
		q := stripListMarker(strings.TrimSpace(line))
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == suggestCount {
			break
		}
	}
	return questions, nil
}

// stripListMarker removes a leading "-", "*", "1." or "1)" some models add despite the prompt.
func stripListMarker(s string) string {
	trimmed := strings.TrimLeft(s, "-*• ")
	digits := strings.TrimLeftFunc(trimmed, unicode.IsDigit)
	if len(digits) < len(trimmed) && (strings.HasPrefix(digits, ".") || strings.HasPrefix(digits, ")")) {
		trimmed = digits[1:]
	}
	return strings.TrimSpace(trimmed)
}
