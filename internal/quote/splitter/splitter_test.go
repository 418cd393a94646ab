package splitter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
'Stay hungry, stay foolish.'
Steve Jobs


Before you go...
'It always seems impossible until it is done.'
Nelson Mandela
'The last one has no trailing blank line.'`

func collect(t *testing.T, s string) []string {
	t.Helper()
	var out []string
	for b, err := range Blocks(strings.NewReader(s)) {
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestBlocks(t *testing.T) {
	got := collect(t, sample)
	assert.Equal(t, []string{
		"'Stay hungry, stay foolish.'\nSteve Jobs",
		"Before you go...\n'It always seems impossible until it is done.'\nNelson Mandela\n'The last one has no trailing blank line.'",
	}, got)
}

func TestBlocksIgnoresWhitespaceOnlyInput(t *testing.T) {
	assert.Empty(t, collect(t, "\n \n\t\n"))
}

func TestBlocksStopsEarly(t *testing.T) {
	n := 0
	for range Blocks(strings.NewReader("a\n\nb\n\nc")) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "quotes")
	n, err := WriteDir(dir, Blocks(strings.NewReader("one\n\ntwo\nlines\n\n")), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	body, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(body))
	body, err = os.ReadFile(filepath.Join(dir, "2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two\nlines", string(body))
}

func TestWriteDirStopsOnError(t *testing.T) {
	blocks := func(yield func(string, error) bool) {
		if !yield("ok", nil) {
			return
		}
		yield("", errors.New("disk gone"))
	}
	n, err := WriteDir(t.TempDir(), blocks, 5)
	assert.EqualError(t, err, "disk gone")
	assert.Equal(t, 1, n)
}
