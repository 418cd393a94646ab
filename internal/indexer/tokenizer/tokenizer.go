// Package tokenizer splits text into normalised word tokens. Pieces are
// separated on whitespace, stripped of punctuation and lower-cased. Stop-words
// are kept and no stemming is applied.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
)

// asciiPunct mirrors the ASCII punctuation set. Several of these ($ + < = > ^ `
// | ~) are symbols rather than punctuation in Unicode terms.
const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Tokenize returns a lazy sequence over the tokens of text. Each call yields
// a fresh, finite sequence and empty tokens are never produced.
func Tokenize(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, piece := range strings.Fields(text) {
			token := Normalize(piece)
			if token == "" {
				continue
			}
			if !yield(token) {
				return
			}
		}
	}
}

// Normalize strips punctuation from a single word and lower-cases it.
func Normalize(word string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if isPunct(r) {
			return -1
		}
		return r
	}, word))
}

func isPunct(r rune) bool {
	if r < unicode.MaxASCII {
		return strings.ContainsRune(asciiPunct, r)
	}
	return unicode.IsPunct(r)
}
