// Package objectstore implements storage.Backend over an S3 bucket. All keys
// live at the bucket root using the same naming rules as the local store.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/quoteindex/quoteindex/internal/indexer/index"
	"github.com/quoteindex/quoteindex/internal/quote"
	"github.com/quoteindex/quoteindex/internal/storage"
	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

// API is the subset of the S3 client the store uses. *s3.Client satisfies it.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store is a bucket-backed corpus.
type Store struct {
	client API
	bucket string
	now    func() time.Time
	logger *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock that assigns new document IDs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(client API, bucket string, opts ...Option) *Store {
	s := &Store{
		client: client,
		bucket: bucket,
		now:    time.Now,
		logger: slog.Default().With("component", "object-store", "bucket", bucket),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

func (s *Store) Corpus(ctx context.Context) iter.Seq2[index.Line, error] {
	return func(yield func(index.Line, error) bool) {
		keys, err := s.list(ctx, "")
		if err != nil {
			yield(index.Line{}, err)
			return
		}
		for _, ref := range storage.DocumentRefs(keys) {
			if err := ctx.Err(); err != nil {
				yield(index.Line{}, err)
				return
			}
			more, err := s.yieldDocument(ctx, ref, yield)
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

func (s *Store) yieldDocument(ctx context.Context, ref storage.DocumentRef, yield func(index.Line, error) bool) (bool, error) {
	body, err := s.open(ctx, ref.Key)
	if err != nil {
		return false, err
	}
	defer body.Close()
	return storage.YieldLines(body, ref.ID, yield)
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
	if err := s.put(ctx, key, body, "application/json"); err != nil {
		return "", err
	}
	s.logger.Info("snapshot uploaded", "key", key, "entries", data.Len(), "bytes", len(body))
	return key, nil
}

func (s *Store) LoadLatestSnapshot(ctx context.Context, prefix string, dst any) (string, error) {
	keys, err := s.list(ctx, prefix)
	if err != nil {
		return "", err
	}
	key, ok := storage.LatestMatching(keys, prefix, storage.SnapshotExt)
	if !ok {
		return "", apperrors.NotFoundf("no snapshot with prefix %q in bucket %s", prefix, s.bucket)
	}
	body, err := s.read(ctx, key)
	if err != nil {
		return "", err
	}
	s.logger.Debug("snapshot loaded", "key", key, "bytes", len(body))
	return key, storage.DecodeSnapshot(key, body, dst)
}

// FetchDocument tries "<id>.txt" directly and only lists the bucket when
// that key is missing.
func (s *Store) FetchDocument(ctx context.Context, id string) (string, error) {
	body, err := s.read(ctx, id+storage.DocumentExt)
	if err == nil {
		return string(body), nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return "", err
	}
	keys, err := s.list(ctx, id)
	if err != nil {
		return "", err
	}
	key, ok := storage.LatestMatching(keys, id, storage.DocumentExt)
	if !ok {
		return "", apperrors.NotFoundf("no document matching %q", id)
	}
	body, err = s.read(ctx, key)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// AppendDocument stores q under the current Unix time in seconds. Two
// appends within the same second target the same key and the later one
// wins.
func (s *Store) AppendDocument(ctx context.Context, q quote.Quote) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	id := int(s.now().Unix())
	key := storage.DocumentKey(id)
	body := []byte(q.Format())
	if err := s.put(ctx, key, body, "text/plain; charset=utf-8"); err != nil {
		return 0, err
	}
	s.logger.Info("document uploaded", "key", key, "bytes", len(body))
	return id, nil
}

// PutDocument uploads raw text under key as-is.
func (s *Store) PutDocument(ctx context.Context, key string, body []byte) error {
	return s.put(ctx, key, body, "text/plain; charset=utf-8")
}

func (s *Store) list(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, s.fail("list", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *Store) open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, apperrors.NotFoundf("object %s not found in bucket %s", key, s.bucket)
		}
		return nil, s.fail("get", key, err)
	}
	return out.Body, nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	body, err := s.open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, s.fail("read", key, err)
	}
	return b, nil
}

func (s *Store) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return s.fail("put", key, err)
	}
	return nil
}

func (s *Store) fail(op, key string, err error) error {
	s.logger.Error("object store request failed", "op", op, "key", key, "error", err)
	return apperrors.Unavailable(op, fmt.Sprintf("s3://%s/%s", s.bucket, key), err)
}

// IsNotFound reports whether err is S3's answer for a missing key.
func IsNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
