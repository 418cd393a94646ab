package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/quoteindex/quoteindex/internal/indexer/index"
)

const maxLineBytes = 1 << 20

// YieldLines streams r line by line as lines of document id. It reports
// whether the consumer wants more; a read error is returned, not yielded.
func YieldLines(r io.Reader, id int, yield func(index.Line, error) bool) (bool, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if !yield(index.Line{DocID: id, Text: sc.Text()}, nil) {
			return false, nil
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("scanning document %d: %w", id, err)
	}
	return true, nil
}

// EncodeSnapshot serialises a snapshot payload.
func EncodeSnapshot(data Mapping) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot deserialises a snapshot payload read from key into dst.
func DecodeSnapshot(key string, b []byte, dst any) error {
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decoding snapshot %s: %w", key, err)
	}
	return nil
}
