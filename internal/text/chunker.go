package text

import "strings"

const (
	DefaultChunkSize    = 500 // tokens per chunk
	DefaultChunkOverlap = 50  // tokens shared between neighboring chunks
)

// Chunk is a token-bounded slice of a document's extracted text, the
// unit of embedding and retrieval.
type Chunk struct {
	Text       string
	Index      int
	TokenCount int
	Offset     int
}

// ChunkText splits text into overlapping token windows. Each chunk after
// the first begins exactly `overlap` tokens before the end of its
// predecessor, so concatenating the non-overlapping portions reproduces
// the token stream. Empty text yields zero chunks; text shorter than
// `size` yields exactly one.
func ChunkText(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	step := size - overlap
	var chunks []Chunk
	for start := 0; ; start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		parts := make([]string, len(window))
		for i, t := range window {
			parts[i] = t.Text
		}

		chunks = append(chunks, Chunk{
			Text:       strings.Join(parts, " "),
			Index:      len(chunks),
			TokenCount: len(window),
			Offset:     window[0].Offset,
		})

		if end == len(tokens) {
			break
		}
	}
	return chunks
}
