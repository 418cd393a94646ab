package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quoteindex/quoteindex/internal/storage"
	"github.com/quoteindex/quoteindex/internal/storage/backend"
	"github.com/quoteindex/quoteindex/internal/storage/objectstore"
	"github.com/quoteindex/quoteindex/pkg/config"
)

const uploadProgressEvery = 10

// documentPutter is satisfied by *objectstore.Store.
type documentPutter interface {
	PutDocument(ctx context.Context, key string, body []byte) error
}

func newUploadCmd(g *globals) *cobra.Command {
	var (
		dir      string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Copy a local corpus directory into the configured bucket",
		Long: `Upload every "<id>.txt" document from a local directory to the S3
bucket under the same key. Snapshots and other files are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.cfg.Storage.Mode != config.StorageS3 {
				return errors.New("upload requires the s3 storage backend (use --source s3)")
			}
			if dir == "" {
				dir = g.cfg.Storage.LocalDir
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handle, err := backend.Open(ctx, g.cfg.Storage)
			if err != nil {
				return err
			}
			store, ok := handle.Backend.(*objectstore.Store)
			if !ok {
				return errors.New("upload requires the s3 storage backend")
			}
			n, err := uploadDir(ctx, store, dir, parallel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d documents to s3://%s\n", n, store.Bucket())
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Local corpus directory (defaults to storage.localDir)")
	cmd.Flags().IntVar(&parallel, "parallel", 8, "Concurrent uploads")
	return cmd
}

// uploadDir puts every document in dir through store with at most parallel
// requests in flight, and stops at the first failure.
func uploadDir(ctx context.Context, store documentPutter, dir string, parallel int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	refs := storage.DocumentRefs(names)
	logger := slog.Default().With("component", "upload", "dir", dir)
	logger.Info("uploading documents", "documents", len(refs), "parallel", parallel)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	var done atomic.Int64
	for _, ref := range refs {
		g.Go(func() error {
			body, err := os.ReadFile(filepath.Join(dir, ref.Key))
			if err != nil {
				return fmt.Errorf("reading %s: %w", ref.Key, err)
			}
			if err := store.PutDocument(gctx, ref.Key, body); err != nil {
				return err
			}
			if n := done.Add(1); n%uploadProgressEvery == 0 {
				logger.Info("upload progress", "uploaded", n, "total", len(refs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(done.Load()), err
	}
	return len(refs), nil
}
