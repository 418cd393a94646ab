package tokenizer

import (
	"slices"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"only whitespace", " \t\n ", nil},
		{"plain", "this is a line index this line", []string{"this", "is", "a", "line", "index", "this", "line"}},
		{"dirty", `This is a line. Index this "line"`, []string{"this", "is", "a", "line", "index", "this", "line"}},
		{"punctuation only pieces dropped", "wait -- what ?!", []string{"wait", "what"}},
		{"inner punctuation removed", "don't re-index", []string{"dont", "reindex"}},
		{"symbols", "a+b=c $5 <tag>", []string{"abc", "5", "tag"}},
		{"unicode punctuation", "«Bonjour»… ¿Qué?", []string{"bonjour", "qué"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Tokenize(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeInvariants(t *testing.T) {
	inputs := []string{
		"Sometimes even good Homer nods off.",
		"'[to succeed] you must study the endgame before everything else.'",
		"Horace, Ars Poetica",
		"!!! ... ??? ---",
		"MiXeD CaSe_With_Underscores",
		"tabs\tand\nnewlines\r\nhere",
	}
	for _, in := range inputs {
		for tok := range Tokenize(in) {
			assert.NotEmpty(t, tok, "input %q", in)
			assert.Equal(t, strings.ToLower(tok), tok, "input %q", in)
			for _, r := range tok {
				assert.False(t, unicode.IsPunct(r) || strings.ContainsRune(asciiPunct, r),
					"token %q from %q contains punctuation", tok, in)
			}
		}
	}
}

func TestTokenizeIsRestartable(t *testing.T) {
	seq := Tokenize("foo bar")
	assert.Equal(t, []string{"foo", "bar"}, slices.Collect(seq))
	assert.Equal(t, []string{"foo", "bar"}, slices.Collect(seq))
}

func TestTokenizeStopsEarly(t *testing.T) {
	var got []string
	for tok := range Tokenize("one two three four") {
		got = append(got, tok)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func BenchmarkTokenize(b *testing.B) {
	text := "'I have always imagined that Paradise will be a kind of library.' Jorge Luis Borges"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range Tokenize(text) {
		}
	}
}
