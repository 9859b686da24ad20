package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestNewSplitter(t *testing.T) {
	t.Run("ShouldRejectOverlapNotSmallerThanSize", func(t *testing.T) {
		_, err := NewSplitter(10, 10, 0)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindConfig))
	})

	t.Run("ShouldRejectNonPositiveSize", func(t *testing.T) {
		_, err := NewSplitter(0, 0, 0)
		require.Error(t, err)
	})
}

func TestSplitterSentenceBoundaries(t *testing.T) {
	s, err := NewSplitter(20, 5, 0)
	require.NoError(t, err)

	text := "The cat sat. The dog ran. Birds fly south."
	chunks, err := s.Split(text)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.ID)
		assert.NotEmpty(t, c.Text)
		assert.True(t, strings.HasSuffix(c.Text, "."), "chunk %d %q should end at a sentence boundary", i, c.Text)
		assert.Equal(t, len([]rune(c.Text)), c.Length)
	}
	assert.Equal(t, "The cat sat.", chunks[0].Text)
	assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].End)

	var sawDog bool
	for _, c := range chunks {
		if strings.Contains(c.Text, "The dog ran.") {
			sawDog = true
		}
	}
	assert.True(t, sawDog)
}

func TestSplitterInvariants(t *testing.T) {
	texts := []string{
		"",
		"short",
		strings.Repeat("word ", 300),
		strings.Repeat("A sentence here. Another one follows!\nNew line? Yes.", 40),
		"ünïcödé text, non-ASCII runes. " + strings.Repeat("é", 250),
		"   leading and trailing whitespace around a single sentence.   ",
	}
	params := []struct{ size, overlap int }{{20, 5}, {50, 0}, {100, 99}, {7, 3}, {1000, 200}}

	for _, text := range texts {
		for _, p := range params {
			s, err := NewSplitter(p.size, p.overlap, 0)
			require.NoError(t, err)
			chunks, err := s.Split(text)
			require.NoError(t, err)

			runes := []rune(text)
			if strings.TrimSpace(text) == "" {
				assert.Empty(t, chunks)
				continue
			}
			require.NotEmpty(t, chunks)
			assert.Equal(t, len(runes), chunks[len(chunks)-1].End)

			var rebuilt []rune
			prevEnd := 0
			for i, c := range chunks {
				assert.NotEmpty(t, c.Text)
				assert.LessOrEqual(t, c.End-c.Start, p.size+1)
				assert.Contains(t, string(runes[c.Start:c.End]), c.Text)
				if i > 0 {
					prev := chunks[i-1]
					assert.Greater(t, c.Start, prev.Start)
					assert.LessOrEqual(t, prev.End-c.Start, p.overlap)
					assert.GreaterOrEqual(t, prev.End, c.Start, "windows must not leave gaps")
				}
				if c.End > prevEnd {
					from := prevEnd
					if c.Start > from {
						from = c.Start
					}
					rebuilt = append(rebuilt, runes[from:c.End]...)
					prevEnd = c.End
				}
			}
			assert.Equal(t, strings.TrimSpace(text), strings.TrimSpace(string(rebuilt)))
		}
	}
}

func TestSplitterHardCutWithoutTerminal(t *testing.T) {
	s, err := NewSplitter(10, 2, 0)
	require.NoError(t, err)

	chunks, err := s.Split(strings.Repeat("x", 25))
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 10, chunks[0].End)
	assert.Equal(t, 8, chunks[1].Start)
	assert.Equal(t, 18, chunks[1].End)
	assert.Equal(t, 16, chunks[2].Start)
	assert.Equal(t, 25, chunks[2].End)
}

func TestSplitterTerminalJustPastWindow(t *testing.T) {
	s, err := NewSplitter(7, 3, 0)
	require.NoError(t, err)

	chunks, err := s.Split("abcdefg. rest of it")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, "abcdefg.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 8, chunks[0].End)
	assert.Equal(t, 5, chunks[1].Start)
}
