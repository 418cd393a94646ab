package index

import (
	"slices"
	"strconv"
)

// Line is one line of one document as produced by a corpus iterator.
type Line struct {
	DocID int
	Text  string
}

// Inverted maps a word ID, in its decimal string form, to the ascending
// document IDs whose lines contain that word. A document appears once per
// matching line, so IDs may repeat.
type Inverted map[string][]int

func (inv Inverted) Len() int {
	return len(inv)
}

// Lookup returns the posting list for wordID, or nil.
func (inv Inverted) Lookup(wordID int) []int {
	return inv[strconv.Itoa(wordID)]
}

// Postings returns the total number of entries across all lists.
func (inv Inverted) Postings() int {
	n := 0
	for _, docs := range inv {
		n += len(docs)
	}
	return n
}

// DocIDs returns every distinct document ID referenced by the index, sorted.
func (inv Inverted) DocIDs() []int {
	seen := make(map[int]struct{})
	for _, docs := range inv {
		for _, id := range docs {
			seen[id] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
