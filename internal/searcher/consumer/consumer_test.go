package consumer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingRefresher struct{ calls int }

func (c *countingRefresher) Refresh() { c.calls++ }

func TestHandleIndexBuiltRefreshes(t *testing.T) {
	r := &countingRefresher{}
	h := HandleIndexBuilt(r)

	err := h(context.Background(), []byte("t1"), []byte(`{"event_id":"e1","index_key":"index-2021-05-27--09:00.json","words":4}`))
	assert.NoError(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestHandleIndexBuiltAcksMalformedPayload(t *testing.T) {
	r := &countingRefresher{}
	h := HandleIndexBuilt(r)

	assert.NoError(t, h(context.Background(), nil, []byte("not json")))
	assert.Zero(t, r.calls)
}
