// Package kafkahook publishes every appended ledger event to a Kafka topic.
//
// Records are keyed by stream so that a partition preserves the per-stream
// sequence order. Publishing is best effort: failures are logged and never
// roll back the append.
package kafkahook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/plugin"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "assetledger.events"

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnEventsAppended = (*Extension)(nil)
	_ plugin.OnShutdown       = (*Extension)(nil)
	_ Producer                = (*kgo.Client)(nil)
)

// Producer is the subset of *kgo.Client the extension needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Option configures an Extension.
type Option func(*Extension)

// WithTopic sets the destination topic.
func WithTopic(topic string) Option {
	return func(e *Extension) { e.topic = topic }
}

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithTypes restricts publishing to the given event types.
func WithTypes(types ...event.Type) Option {
	return func(e *Extension) {
		e.types = make(map[event.Type]bool, len(types))
		for _, t := range types {
			e.types[t] = true
		}
	}
}

// Extension is a ledger plugin that forwards events to Kafka.
type Extension struct {
	producer Producer
	topic    string
	types    map[event.Type]bool // nil = all
	logger   *slog.Logger
}

// New creates an Extension publishing through p.
func New(p Producer, opts ...Option) *Extension {
	e := &Extension{
		producer: p,
		topic:    DefaultTopic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewClient creates a franz-go client for the given seed brokers and wraps it
// in an Extension. The extension closes the client on shutdown.
func NewClient(brokers []string, opts ...Option) (*Extension, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka_hook: create client: %w", err)
	}
	return New(client, opts...), nil
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "kafka-hook" }

// Message is the JSON value written for each event.
type Message struct {
	Stream string       `json:"stream"`
	Event  *event.Event `json:"event"`
}

// OnEventsAppended implements plugin.OnEventsAppended.
func (e *Extension) OnEventsAppended(ctx context.Context, stream event.Stream, events []*event.Event) error {
	key := []byte(stream.String())
	records := make([]*kgo.Record, 0, len(events))
	for _, evt := range events {
		if e.types != nil && !e.types[evt.Type] {
			continue
		}
		value, err := json.Marshal(Message{Stream: stream.String(), Event: evt})
		if err != nil {
			return fmt.Errorf("kafka_hook: encode %s: %w", evt, err)
		}
		records = append(records, &kgo.Record{
			Topic: e.topic,
			Key:   key,
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(evt.Type)},
				{Key: "event_id", Value: []byte(evt.ID.String())},
			},
		})
	}
	if len(records) == 0 {
		return nil
	}

	if err := e.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		e.logger.Warn("kafka_hook: failed to publish events",
			"stream", stream.String(),
			"count", len(records),
			"error", err,
		)
		return fmt.Errorf("kafka_hook: produce: %w", err)
	}
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (e *Extension) OnShutdown(_ context.Context) error {
	e.producer.Close()
	return nil
}
