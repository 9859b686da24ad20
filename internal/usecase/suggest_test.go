package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestSuggestUseCase_Suggest(t *testing.T) {
	t.Run("Should return at most five cleaned questions", func(t *testing.T) {
		chat := &fakeChat{completion: domain.Completion{
			Text:  "1. Why did the dog run?\n\n- Where do birds fly?\nWhat did the cat do?\nQ4?\nQ5?\nQ6?",
			State: domain.StateDone,
		}}
		uc := NewSuggestUseCase(chat)

		questions, err := uc.Suggest(context.Background(), strings.Repeat("x", 6000))
		require.NoError(t, err)
		assert.Equal(t, []string{"Why did the dog run?", "Where do birds fly?", "What did the cat do?", "Q4?", "Q5?"}, questions)

		require.NotNil(t, chat.lastOpts.Temperature)
		assert.InDelta(t, 0.7, *chat.lastOpts.Temperature, 1e-9)
		assert.Equal(t, 300, chat.lastOpts.MaxTokens)
		assert.NotContains(t, chat.lastMsgs[1].Content, strings.Repeat("x", 5001))
	})

	t.Run("Should reject an empty sample", func(t *testing.T) {
		_, err := NewSuggestUseCase(&fakeChat{}).Suggest(context.Background(), " ")
		assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
	})
}
