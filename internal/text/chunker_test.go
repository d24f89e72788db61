package text

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Run("Splits On Whitespace", func(t *testing.T) {
		tokens := Tokenize("hello  world\nagain")
		assert.Len(t, tokens, 3)
		assert.Equal(t, "hello", tokens[0].Text)
		assert.Equal(t, "world", tokens[1].Text)
		assert.Equal(t, "again", tokens[2].Text)
	})

	t.Run("Records Byte Offsets", func(t *testing.T) {
		tokens := Tokenize("ab cd")
		assert.Equal(t, 0, tokens[0].Offset)
		assert.Equal(t, 3, tokens[1].Offset)
	})

	t.Run("Empty Input", func(t *testing.T) {
		assert.Empty(t, Tokenize(""))
		assert.Empty(t, Tokenize("   \n\t  "))
	})

	t.Run("CountTokens", func(t *testing.T) {
		assert.Equal(t, 0, CountTokens(""))
		assert.Equal(t, 4, CountTokens("one two three four"))
	})
}

func TestChunkText(t *testing.T) {
	t.Run("Empty Text Yields No Chunks", func(t *testing.T) {
		assert.Nil(t, ChunkText("", 10, 2))
		assert.Nil(t, ChunkText("   ", 10, 2))
	})

	t.Run("Short Text Yields One Chunk", func(t *testing.T) {
		chunks := ChunkText("just a few words here", 10, 2)
		assert.Len(t, chunks, 1)
		assert.Equal(t, "just a few words here", chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, 5, chunks[0].TokenCount)
	})

	t.Run("Exact Overlap Between Neighbors", func(t *testing.T) {
		words := make([]string, 25)
		for i := range words {
			words[i] = fmt.Sprintf("w%02d", i)
		}
		text := strings.Join(words, " ")

		size, overlap := 10, 3
		chunks := ChunkText(text, size, overlap)
		assert.True(t, len(chunks) > 1)

		for i := 1; i < len(chunks); i++ {
			prev := strings.Fields(chunks[i-1].Text)
			curr := strings.Fields(chunks[i].Text)
			// The first `overlap` tokens of each chunk equal the last
			// `overlap` tokens of its predecessor
			assert.Equal(t, prev[len(prev)-overlap:], curr[:overlap],
				"chunk %d does not overlap its predecessor by exactly %d tokens", i, overlap)
		}
	})

	t.Run("Reconstruction From Non Overlapping Portions", func(t *testing.T) {
		words := make([]string, 57)
		for i := range words {
			words[i] = fmt.Sprintf("tok%02d", i)
		}
		text := strings.Join(words, " ")

		size, overlap := 12, 4
		chunks := ChunkText(text, size, overlap)

		var rebuilt []string
		for i, c := range chunks {
			fields := strings.Fields(c.Text)
			if i > 0 {
				fields = fields[overlap:]
			}
			rebuilt = append(rebuilt, fields...)
		}
		assert.Equal(t, words, rebuilt)
	})

	t.Run("Indices Are Sequential", func(t *testing.T) {
		text := strings.Repeat("word ", 40)
		chunks := ChunkText(text, 10, 2)
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
		}
	})

	t.Run("Defaults Applied For Invalid Parameters", func(t *testing.T) {
		text := strings.Repeat("word ", 30)
		chunks := ChunkText(text, 0, -1)
		assert.Len(t, chunks, 1)
		assert.Equal(t, 30, chunks[0].TokenCount)
	})

	t.Run("Overlap Clamped Below Size", func(t *testing.T) {
		text := strings.Repeat("word ", 30)
		chunks := ChunkText(text, 5, 10)
		// step is forced to at least 1, so chunking terminates
		assert.True(t, len(chunks) > 1)
	})

	t.Run("Token Counts Sum With Overlap", func(t *testing.T) {
		words := make([]string, 43)
		for i := range words {
			words[i] = fmt.Sprintf("x%d", i)
		}
		chunks := ChunkText(strings.Join(words, " "), 10, 3)

		total := 0
		for i, c := range chunks {
			total += c.TokenCount
			if i > 0 {
				total -= 3
			}
		}
		assert.Equal(t, 43, total)
	})
}
