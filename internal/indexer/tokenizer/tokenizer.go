// Package tokenizer provides the text tokenisation shared by corpus
// documents and queries. It lower-cases input and splits it into maximal
// runs of letters, numbers (any Unicode N category) and underscores. There is no stop-word removal
// and no stemming: every word survives as-is.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into a slice of lowercased Tokens. Empty input
// yields an empty, non-nil slice.
func Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
	}
	return tokens
}

// Terms is Tokenize without positions.
func Terms(text string) []string {
	return split(text)
}

func split(text string) []string {
	if text == "" {
		return []string{}
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	if words == nil {
		return []string{}
	}
	return words
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
