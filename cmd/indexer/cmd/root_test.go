package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against a local corpus in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QI_STORAGE_MODE", "")
	t.Setenv("QI_STORAGE_LOCAL_DIR", dir)
	t.Setenv("QI_KAFKA_ENABLED", "")
	t.Setenv("QI_POSTGRES_ENABLED", "")

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeDoc(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestBuildWritesSnapshots(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "1.txt", "'Be yourself.'\nOscar Wilde")
	writeDoc(t, dir, "2.txt", "'Yourself, always.'\nAnon")

	out, err := run(t, dir, "build", "--source", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "from 2 documents")

	idx, err := filepath.Glob(filepath.Join(dir, "index-*.json"))
	require.NoError(t, err)
	assert.Len(t, idx, 1)
	words, err := filepath.Glob(filepath.Join(dir, "word-ids-*.json"))
	require.NoError(t, err)
	assert.Len(t, words, 1)
}

func TestBuildEmptyCorpus(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "corpus is empty")

	snaps, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestBuildRejectsUnknownSource(t *testing.T) {
	_, err := run(t, t.TempDir(), "build", "--source", "ftp")
	assert.ErrorContains(t, err, "unknown storage mode")
}

func TestWatchRequiresKafka(t *testing.T) {
	_, err := run(t, t.TempDir(), "watch")
	assert.ErrorContains(t, err, "kafka.enabled")
}

func TestSplitWritesNumberedDocuments(t *testing.T) {
	src := filepath.Join(t.TempDir(), "quotes.txt")
	require.NoError(t, os.WriteFile(src, []byte("'One.'\nA\n\n'Two.'\nB\n"), 0o644))
	out := t.TempDir()

	stdout, err := run(t, t.TempDir(), "split", src, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 2 documents")

	first, err := os.ReadFile(filepath.Join(out, "1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "'One.'\nA", string(first))
	_, err = os.Stat(filepath.Join(out, "2.txt"))
	assert.NoError(t, err)
}

func TestUploadRequiresS3(t *testing.T) {
	_, err := run(t, t.TempDir(), "upload")
	assert.ErrorContains(t, err, "s3")
}

type memPutter struct {
	mu   sync.Mutex
	objs map[string]string
}

func (m *memPutter) PutDocument(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = string(body)
	return nil
}

func TestUploadDirSkipsNonDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "1.txt", "one")
	writeDoc(t, dir, "12.txt", "twelve")
	writeDoc(t, dir, "index-2021-05-27--09:00.json", "{}")
	writeDoc(t, dir, "notes.txt", "skip")

	m := &memPutter{objs: map[string]string{}}
	n, err := uploadDir(context.Background(), m, dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"1.txt": "one", "12.txt": "twelve"}, m.objs)
}
