// Package index builds the word-ID to document-ID inverted index.
package index

import (
	"iter"
	"slices"
	"strconv"

	"github.com/quoteindex/quoteindex/internal/indexer/registry"
	"github.com/quoteindex/quoteindex/internal/indexer/tokenizer"
)

// MemoryIndex accumulates postings for a single build. Lists are appended
// unsorted and sorted once in Snapshot.
type MemoryIndex struct {
	words    *registry.WordIDs
	index    map[int][]int
	docs     map[int]struct{}
	lines    int
	postings int
}

// NewMemoryIndex returns an empty index owning a fresh word registry.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		words: registry.New(),
		index: make(map[int][]int),
		docs:  make(map[int]struct{}),
	}
}

// AddLine tokenises one line and records docID once under the word ID of
// each distinct token on it. A word repeated across several lines of the
// same document is recorded once per line.
func (m *MemoryIndex) AddLine(docID int, line string) {
	seen := make(map[int]struct{})
	for token := range tokenizer.Tokenize(line) {
		wordID := m.words.Resolve(token)
		if _, dup := seen[wordID]; dup {
			continue
		}
		seen[wordID] = struct{}{}
		m.index[wordID] = append(m.index[wordID], docID)
		m.postings++
	}
	m.docs[docID] = struct{}{}
	m.lines++
}

// Snapshot returns the index keyed by word-ID strings with each list sorted
// ascending. The MemoryIndex is left untouched.
func (m *MemoryIndex) Snapshot() Inverted {
	out := make(Inverted, len(m.index))
	for wordID, docs := range m.index {
		sorted := slices.Clone(docs)
		slices.Sort(sorted)
		out[strconv.Itoa(wordID)] = sorted
	}
	return out
}

// Words returns the registry populated by this build.
func (m *MemoryIndex) Words() *registry.WordIDs {
	return m.words
}

func (m *MemoryIndex) DocCount() int {
	return len(m.docs)
}

func (m *MemoryIndex) LineCount() int {
	return m.lines
}

func (m *MemoryIndex) PostingCount() int {
	return m.postings
}

// Build consumes lines until the sequence ends or yields an error, and
// returns the sorted index together with the registry that produced it.
// On error nothing is returned so a failed corpus read never surfaces a
// partial index.
func Build(lines iter.Seq2[Line, error]) (Inverted, *registry.WordIDs, error) {
	m := NewMemoryIndex()
	for line, err := range lines {
		if err != nil {
			return nil, nil, err
		}
		m.AddLine(line.DocID, line.Text)
	}
	return m.Snapshot(), m.Words(), nil
}
