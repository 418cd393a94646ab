package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quoteindex/quoteindex/internal/indexer"
)

type countingRebuilder struct {
	calls int
	err   error
}

func (c *countingRebuilder) Rebuild(context.Context) (*indexer.BuildReport, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &indexer.BuildReport{Words: 1, IndexKey: "index-2021-05-27--09:00.json"}, nil
}

func TestHandleQuoteSubmittedRebuilds(t *testing.T) {
	r := &countingRebuilder{}
	h := HandleQuoteSubmitted(r)

	err := h(context.Background(), []byte("3"), []byte(`{"event_id":"e1","document_id":3}`))
	assert.NoError(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestHandleQuoteSubmittedAcksMalformedPayload(t *testing.T) {
	r := &countingRebuilder{}
	h := HandleQuoteSubmitted(r)

	assert.NoError(t, h(context.Background(), nil, []byte("{")))
	assert.Zero(t, r.calls)
}

func TestHandleQuoteSubmittedReturnsRebuildError(t *testing.T) {
	r := &countingRebuilder{err: errors.New("bucket unreachable")}
	h := HandleQuoteSubmitted(r)

	err := h(context.Background(), nil, []byte(`{"document_id":4}`))
	assert.ErrorContains(t, err, "bucket unreachable")
}
