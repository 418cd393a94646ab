// Package storage defines the Backend contract shared by the local
// filesystem and object-store implementations, together with the key
// naming rules both of them follow.
//
// Documents are stored as "<id>.txt". Snapshots are stored as
// "<name>-YYYY-MM-DD--HH:MM.json"; the fixed-width timestamp makes
// lexicographic order match chronological order, so the latest snapshot for
// a prefix is simply the last matching key.
package storage

import (
	"cmp"
	"context"
	"iter"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/quoteindex/quoteindex/internal/indexer/index"
	"github.com/quoteindex/quoteindex/internal/quote"
)

// Snapshot names written by an index build.
const (
	IndexSnapshot   = "index"
	WordIDsSnapshot = "word-ids"
)

const (
	// TimestampLayout is minute granularity; two snapshots written within
	// the same minute share a key and the later one wins.
	TimestampLayout = "2006-01-02--15:04"
	SnapshotExt     = ".json"
	DocumentExt     = ".txt"
)

var docKeyPattern = regexp.MustCompile(`^(\d+)\.txt$`)

// Mapping is any JSON-serialisable key/value snapshot payload.
type Mapping interface {
	Len() int
}

// Backend supplies the corpus and persists index snapshots.
type Backend interface {
	// Corpus yields every line of every document in ascending document-ID
	// order. Keys that are not "<int>.txt" are skipped. Iteration stops at
	// the first error, which is yielded once.
	Corpus(ctx context.Context) iter.Seq2[index.Line, error]

	// PersistSnapshot serialises data under name plus the timestamp suffix
	// for at and returns the key written. Empty data is not written and ""
	// is returned.
	PersistSnapshot(ctx context.Context, name string, at time.Time, data Mapping) (string, error)

	// LoadLatestSnapshot decodes the lexicographically last snapshot whose
	// key starts with prefix into dst and returns its key. It fails with
	// ErrNotFound when no snapshot matches.
	LoadLatestSnapshot(ctx context.Context, prefix string, dst any) (string, error)

	// FetchDocument returns the raw text of document id, falling back to the
	// last document whose key starts with id.
	FetchDocument(ctx context.Context, id string) (string, error)

	// AppendDocument validates and stores q as a new document and returns
	// its ID. The index is not updated.
	AppendDocument(ctx context.Context, q quote.Quote) (int, error)
}

// SnapshotKey returns the key for a snapshot of name written at t.
func SnapshotKey(name string, t time.Time) string {
	return name + "-" + t.Format(TimestampLayout) + SnapshotExt
}

// PairedKey returns the key of the name snapshot written by the same build
// as key, which must be a snapshot key of prefix from.
func PairedKey(key, from, name string) (string, bool) {
	suffix, ok := strings.CutPrefix(key, from+"-")
	if !ok || !strings.HasSuffix(suffix, SnapshotExt) {
		return "", false
	}
	return name + "-" + suffix, true
}

// DocumentKey returns the key for document id.
func DocumentKey(id int) string {
	return strconv.Itoa(id) + DocumentExt
}

// ParseDocumentKey extracts the document ID from a "<int>.txt" key. Any
// directory part is ignored.
func ParseDocumentKey(key string) (int, bool) {
	m := docKeyPattern.FindStringSubmatch(path.Base(key))
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// DocumentRef pairs a document ID with its storage key.
type DocumentRef struct {
	ID  int
	Key string
}

// DocumentRefs filters keys down to documents, sorted by numeric ID.
func DocumentRefs(keys []string) []DocumentRef {
	refs := make([]DocumentRef, 0, len(keys))
	for _, k := range keys {
		if id, ok := ParseDocumentKey(k); ok {
			refs = append(refs, DocumentRef{ID: id, Key: k})
		}
	}
	slices.SortFunc(refs, func(a, b DocumentRef) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return refs
}

// NextDocumentID returns one more than the largest document ID among keys,
// or 1 for an empty corpus.
func NextDocumentID(keys []string) int {
	next := 1
	for _, k := range keys {
		if id, ok := ParseDocumentKey(k); ok && id >= next {
			next = id + 1
		}
	}
	return next
}

// LatestMatching returns the lexicographically last key with the given
// prefix and suffix.
func LatestMatching(keys []string, prefix, suffix string) (string, bool) {
	var latest string
	found := false
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) || !strings.HasSuffix(k, suffix) {
			continue
		}
		if !found || k > latest {
			latest = k
			found = true
		}
	}
	return latest, found
}

// DocumentLookup resolves id against keys: the exact "<id>.txt" key when
// present, otherwise the last ".txt" key starting with id.
func DocumentLookup(keys []string, id string) (string, bool) {
	exact := id + DocumentExt
	if slices.Contains(keys, exact) {
		return exact, true
	}
	return LatestMatching(keys, id, DocumentExt)
}
