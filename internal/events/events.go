// Package events publishes domain events: a quote was submitted, an index
// was built.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/quoteindex/quoteindex/pkg/kafka"
)

// QuoteSubmitted is published after a document is appended to the corpus.
type QuoteSubmitted struct {
	EventID     string    `json:"event_id"`
	DocumentID  int       `json:"document_id"`
	RequestID   string    `json:"request_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// IndexBuilt is published after both snapshots of a rebuild are persisted.
type IndexBuilt struct {
	EventID    string    `json:"event_id"`
	TraceID    string    `json:"trace_id"`
	IndexKey   string    `json:"index_key"`
	WordIDsKey string    `json:"word_ids_key"`
	Words      int       `json:"words"`
	Documents  int       `json:"documents"`
	Lines      int       `json:"lines"`
	Postings   int       `json:"postings"`
	DurationMS int64     `json:"duration_ms"`
	BuiltAt    time.Time `json:"built_at"`
}

// Publisher emits domain events.
type Publisher interface {
	QuoteSubmitted(ctx context.Context, e QuoteSubmitted) error
	IndexBuilt(ctx context.Context, e IndexBuilt) error
}

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaPublisher writes each event type to its own topic.
type KafkaPublisher struct {
	submitted Producer
	built     Producer
}

func NewKafkaPublisher(submitted, built Producer) *KafkaPublisher {
	return &KafkaPublisher{submitted: submitted, built: built}
}

func (p *KafkaPublisher) QuoteSubmitted(ctx context.Context, e QuoteSubmitted) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	return p.submitted.Publish(ctx, kafka.Event{Key: strconv.Itoa(e.DocumentID), Value: e})
}

func (p *KafkaPublisher) IndexBuilt(ctx context.Context, e IndexBuilt) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	return p.built.Publish(ctx, kafka.Event{Key: e.IndexKey, Value: e})
}

// Noop drops every event. It is used when Kafka is disabled.
type Noop struct{}

func (Noop) QuoteSubmitted(context.Context, QuoteSubmitted) error { return nil }
func (Noop) IndexBuilt(context.Context, IndexBuilt) error         { return nil }
