// Package splitter turns one text file of blank-line separated quotes into
// numbered corpus documents.
package splitter

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/quoteindex/quoteindex/internal/storage"
)

// Blocks yields each non-empty block of r, trimmed. Blocks are separated by
// one or more blank lines; a final block without a trailing blank line is
// still yielded. A read error is yielded once and ends the sequence.
func Blocks(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(r)
		var b strings.Builder
		flush := func() bool {
			block := strings.TrimSpace(b.String())
			b.Reset()
			if block == "" {
				return true
			}
			return yield(block, nil)
		}
		for sc.Scan() {
			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				if !flush() {
					return
				}
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if err := sc.Err(); err != nil {
			yield("", fmt.Errorf("reading quotes: %w", err))
			return
		}
		flush()
	}
}

// WriteDir writes each block to dir as "<n>.txt", numbering from first, and
// returns how many documents were written. Existing files with the same
// name are overwritten.
func WriteDir(dir string, blocks iter.Seq2[string, error], first int) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}
	n := 0
	for block, err := range blocks {
		if err != nil {
			return n, err
		}
		key := storage.DocumentKey(first + n)
		if err := os.WriteFile(filepath.Join(dir, key), []byte(block), 0o644); err != nil {
			return n, fmt.Errorf("writing %s: %w", key, err)
		}
		n++
	}
	slog.Default().With("component", "splitter").Info("quotes split", "dir", dir, "documents", n)
	return n, nil
}
