package storage

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteindex/quoteindex/internal/indexer/index"
)

func TestSnapshotKey(t *testing.T) {
	ts := time.Date(2021, 5, 27, 9, 5, 59, 0, time.UTC)
	assert.Equal(t, "index-2021-05-27--09:05.json", SnapshotKey(IndexSnapshot, ts))
	assert.Equal(t, "word-ids-2021-05-27--09:05.json", SnapshotKey(WordIDsSnapshot, ts))
}

func TestSnapshotKeysSortChronologically(t *testing.T) {
	earlier := SnapshotKey("index", time.Date(2021, 9, 30, 23, 59, 0, 0, time.UTC))
	later := SnapshotKey("index", time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestParseDocumentKey(t *testing.T) {
	tests := []struct {
		key string
		id  int
		ok  bool
	}{
		{"1.txt", 1, true},
		{"42.txt", 42, true},
		{"quotes/7.txt", 7, true},
		{"index-2021-05-27--09:05.json", 0, false},
		{"notes.txt", 0, false},
		{"12.txt.bak", 0, false},
		{"-3.txt", 0, false},
	}
	for _, tt := range tests {
		id, ok := ParseDocumentKey(tt.key)
		assert.Equal(t, tt.ok, ok, tt.key)
		assert.Equal(t, tt.id, id, tt.key)
	}
}

func TestDocumentRefsSortNumerically(t *testing.T) {
	refs := DocumentRefs([]string{"10.txt", "2.txt", "index-x.json", "1.txt", "readme.md"})
	ids := make([]int, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{1, 2, 10}, ids)
}

func TestDocumentRefsSortExtremeIDs(t *testing.T) {
	refs := DocumentRefs([]string{"9223372036854775807.txt", "0.txt", "9223372036854775806.txt"})
	require.Len(t, refs, 3)
	assert.Equal(t, 0, refs[0].ID)
	assert.Equal(t, math.MaxInt-1, refs[1].ID)
	assert.Equal(t, math.MaxInt, refs[2].ID)
}

func TestPairedKey(t *testing.T) {
	key, ok := PairedKey("index-2021-05-27--09:05.json", IndexSnapshot, WordIDsSnapshot)
	require.True(t, ok)
	assert.Equal(t, "word-ids-2021-05-27--09:05.json", key)

	_, ok = PairedKey("word-ids-2021-05-27--09:05.json", IndexSnapshot, WordIDsSnapshot)
	assert.False(t, ok)
	_, ok = PairedKey("index-2021-05-27--09:05.txt", IndexSnapshot, WordIDsSnapshot)
	assert.False(t, ok)
}

func TestNextDocumentID(t *testing.T) {
	assert.Equal(t, 1, NextDocumentID(nil))
	assert.Equal(t, 11, NextDocumentID([]string{"3.txt", "10.txt", "word-ids-a.json"}))
}

func TestLatestMatching(t *testing.T) {
	keys := []string{
		"index-2021-05-27--09:05.json",
		"index-2021-05-28--08:00.json",
		"word-ids-2021-06-01--00:00.json",
		"index-2021-05-28--08:00.txt",
	}
	got, ok := LatestMatching(keys, "index", SnapshotExt)
	require.True(t, ok)
	assert.Equal(t, "index-2021-05-28--08:00.json", got)

	_, ok = LatestMatching(keys, "missing", SnapshotExt)
	assert.False(t, ok)
}

func TestDocumentLookup(t *testing.T) {
	keys := []string{"1.txt", "12.txt", "13.txt", "1-draft.txt"}

	got, ok := DocumentLookup(keys, "1")
	require.True(t, ok)
	assert.Equal(t, "1.txt", got)

	got, ok = DocumentLookup([]string{"12.txt", "13.txt"}, "1")
	require.True(t, ok)
	assert.Equal(t, "13.txt", got)

	_, ok = DocumentLookup(keys, "9")
	assert.False(t, ok)
}

func TestYieldLines(t *testing.T) {
	var got []index.Line
	more, err := YieldLines(strings.NewReader("foo\r\nbar\n"), 3, func(l index.Line, err error) bool {
		got = append(got, l)
		return true
	})
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []index.Line{{DocID: 3, Text: "foo"}, {DocID: 3, Text: "bar"}}, got)
}

func TestYieldLinesStopsWhenConsumerStops(t *testing.T) {
	calls := 0
	more, err := YieldLines(strings.NewReader("a\nb\nc"), 1, func(index.Line, error) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, 1, calls)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestYieldLinesReadError(t *testing.T) {
	_, err := YieldLines(failingReader{}, 5, func(index.Line, error) bool { return true })
	assert.ErrorContains(t, err, "document 5")
}
