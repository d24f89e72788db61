package text

import (
	"strings"
	"unicode"
)

// Token is a whitespace-delimited token with its byte offset in the
// source text. Tokenization is fixed and deterministic so chunk
// boundaries are reproducible across runs.
type Token struct {
	Text   string
	Offset int
}

func Tokenize(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Text: text[start:i], Offset: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: text[start:], Offset: start})
	}
	return tokens
}

func CountTokens(text string) int {
	return len(strings.Fields(text))
}
