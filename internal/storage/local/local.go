// Package local implements storage.Backend over a single directory holding
// "<id>.txt" documents and "<prefix>-<timestamp>.json" snapshots.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/quoteindex/quoteindex/internal/indexer/index"
	"github.com/quoteindex/quoteindex/internal/quote"
	"github.com/quoteindex/quoteindex/internal/storage"
	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

// appendAttempts bounds how many IDs AppendDocument tries when a concurrent
// writer claims the same one.
const appendAttempts = 5

// Store is a directory-backed corpus.
type Store struct {
	dir    string
	logger *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// New opens dir, creating it when missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating corpus directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "local-store", "dir", dir),
	}, nil
}

// Dir returns the corpus directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Corpus(ctx context.Context) iter.Seq2[index.Line, error] {
	return func(yield func(index.Line, error) bool) {
		names, err := s.list()
		if err != nil {
			yield(index.Line{}, err)
			return
		}
		for _, ref := range storage.DocumentRefs(names) {
			if err := ctx.Err(); err != nil {
				yield(index.Line{}, err)
				return
			}
			more, err := s.yieldDocument(ref, yield)
			if err != nil {
				yield(index.Line{}, err)
				return
			}
			if !more {
				return
			}
		}
	}
}

func (s *Store) yieldDocument(ref storage.DocumentRef, yield func(index.Line, error) bool) (bool, error) {
	f, err := os.Open(filepath.Join(s.dir, ref.Key))
	if err != nil {
		return false, fmt.Errorf("opening document %s: %w", ref.Key, err)
	}
	defer f.Close()
	return storage.YieldLines(f, ref.ID, yield)
}

func (s *Store) PersistSnapshot(ctx context.Context, name string, at time.Time, data storage.Mapping) (string, error) {
	if data == nil || data.Len() == 0 {
		s.logger.Warn("refusing to persist empty snapshot", "name", name)
		return "", nil
	}
	key := storage.SnapshotKey(name, at)
	body, err := storage.EncodeSnapshot(data)
	if err != nil {
		return "", err
	}
	if err := s.writeAtomic(key, body); err != nil {
		return "", err
	}
	s.logger.Info("snapshot written", "key", key, "entries", data.Len(), "bytes", len(body))
	return key, nil
}

func (s *Store) LoadLatestSnapshot(ctx context.Context, prefix string, dst any) (string, error) {
	names, err := s.list()
	if err != nil {
		return "", err
	}
	key, ok := storage.LatestMatching(names, prefix, storage.SnapshotExt)
	if !ok {
		return "", apperrors.NotFoundf("no snapshot with prefix %q in %s", prefix, s.dir)
	}
	body, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NotFoundf("snapshot %s removed", key)
		}
		return "", fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	s.logger.Debug("snapshot loaded", "key", key, "bytes", len(body))
	return key, storage.DecodeSnapshot(key, body, dst)
}

func (s *Store) FetchDocument(ctx context.Context, id string) (string, error) {
	names, err := s.list()
	if err != nil {
		return "", err
	}
	key, ok := storage.DocumentLookup(names, id)
	if !ok {
		return "", apperrors.NotFoundf("no document matching %q", id)
	}
	body, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NotFoundf("document %s removed", key)
		}
		return "", fmt.Errorf("reading document %s: %w", key, err)
	}
	return string(body), nil
}

// AppendDocument writes q as max(existing ID)+1. Files are created
// exclusively, so two concurrent appends never overwrite each other.
func (s *Store) AppendDocument(ctx context.Context, q quote.Quote) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	body := []byte(q.Format())
	for attempt := 0; attempt < appendAttempts; attempt++ {
		names, err := s.list()
		if err != nil {
			return 0, err
		}
		id := storage.NextDocumentID(names)
		key := storage.DocumentKey(id)
		err = s.createExclusive(key, body)
		if errors.Is(err, fs.ErrExist) {
			s.logger.Debug("document id taken, retrying", "key", key)
			continue
		}
		if err != nil {
			return 0, err
		}
		s.logger.Info("document appended", "key", key, "bytes", len(body))
		return id, nil
	}
	return 0, fmt.Errorf("appending document: no free id after %d attempts", appendAttempts)
}

func (s *Store) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *Store) createExclusive(key string, body []byte) error {
	path := filepath.Join(s.dir, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing document %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing document %s: %w", key, err)
	}
	return nil
}

// writeAtomic writes to a temp file first and renames on success. The temp
// file never outlives a failed write.
func (s *Store) writeAtomic(key string, body []byte) (err error) {
	finalPath := filepath.Join(s.dir, key)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.logger.Warn("temp file left behind", "path", tmpPath, "error", rmErr)
			}
		}
	}()
	if _, err = f.Write(body); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", key, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err = os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming %s: %w", key, err)
	}
	return nil
}
