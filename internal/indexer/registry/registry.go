// Package registry assigns dense integer IDs to tokens. A WordIDs value
// belongs to exactly one index build; nothing is shared between builds.
package registry

// WordIDs maps tokens to IDs allocated in first-seen order starting at 0.
// It is not safe for concurrent mutation.
type WordIDs struct {
	ids map[string]int
}

func New() *WordIDs {
	return &WordIDs{ids: make(map[string]int)}
}

// FromMap wraps a token->ID mapping loaded from a snapshot. The map is
// taken over, not copied.
func FromMap(m map[string]int) *WordIDs {
	if m == nil {
		m = make(map[string]int)
	}
	return &WordIDs{ids: m}
}

// Resolve returns the ID for token, allocating the next one on first sight.
func (w *WordIDs) Resolve(token string) int {
	if id, ok := w.ids[token]; ok {
		return id
	}
	id := len(w.ids)
	w.ids[token] = id
	return id
}

// Lookup returns the ID for token without allocating.
func (w *WordIDs) Lookup(token string) (int, bool) {
	id, ok := w.ids[token]
	return id, ok
}

func (w *WordIDs) Len() int {
	return len(w.ids)
}

// Export returns a copy of the token->ID mapping, the persisted form.
func (w *WordIDs) Export() map[string]int {
	out := make(map[string]int, len(w.ids))
	for k, v := range w.ids {
		out[k] = v
	}
	return out
}
