package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/quoteindex/quoteindex/pkg/config"
	"github.com/quoteindex/quoteindex/pkg/resilience"
)

// NewClient builds an S3 client from the default AWS credential chain and
// cfg. A non-empty Endpoint targets an S3-compatible service.
func NewClient(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Resilient wraps an API with retries and a circuit breaker. Missing keys
// are neither retried nor counted as breaker failures.
type Resilient struct {
	inner   API
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

var _ API = (*Resilient)(nil)

// BreakerName labels the object-store breaker in logs and metrics.
const BreakerName = "s3"

// ResilientOption configures a Resilient client.
type ResilientOption func(*resilience.CircuitBreakerConfig)

// WithBreakerListener is called on every breaker transition.
func WithBreakerListener(fn func(name string, from, to resilience.State)) ResilientOption {
	return func(c *resilience.CircuitBreakerConfig) { c.OnStateChange = fn }
}

func NewResilient(inner API, cfg config.StorageConfig, opts ...ResilientOption) *Resilient {
	cb := resilience.CircuitBreakerConfig{
		FailureThreshold:    cfg.CircuitBreaker.FailureThreshold,
		ResetTimeout:        cfg.CircuitBreaker.ResetTimeout,
		HalfOpenMaxRequests: cfg.CircuitBreaker.HalfOpenMaxRequests,
	}
	for _, opt := range opts {
		opt(&cb)
	}
	return &Resilient{
		inner: inner,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
		breaker: resilience.NewCircuitBreaker(BreakerName, cb),
	}
}

// BreakerState exposes the breaker state for health checks.
func (r *Resilient) BreakerState() resilience.State {
	return r.breaker.State()
}

func (r *Resilient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var out *s3.ListObjectsV2Output
	err := r.do(ctx, "s3.ListObjectsV2", func() error {
		var err error
		out, err = r.inner.ListObjectsV2(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (r *Resilient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	var out *s3.GetObjectOutput
	err := r.do(ctx, "s3.GetObject", func() error {
		var err error
		out, err = r.inner.GetObject(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (r *Resilient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var out *s3.PutObjectOutput
	err := r.do(ctx, "s3.PutObject", func() error {
		if seeker, ok := params.Body.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return resilience.Permanent(err)
			}
		}
		var err error
		out, err = r.inner.PutObject(ctx, params, optFns...)
		return err
	})
	return out, err
}

func (r *Resilient) do(ctx context.Context, op string, call func() error) error {
	return resilience.Retry(ctx, op, r.retry, func() error {
		var callErr error
		err := r.breaker.Execute(func() error {
			callErr = call()
			if IsNotFound(callErr) {
				return nil
			}
			return callErr
		})
		switch {
		case callErr != nil && IsNotFound(callErr):
			return resilience.Permanent(callErr)
		case errors.Is(err, resilience.ErrCircuitOpen):
			return resilience.Permanent(err)
		default:
			return err
		}
	})
}
