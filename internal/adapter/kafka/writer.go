package kafka

import (
	"context"
	"log/slog"
	"sort"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/andeanwatch/incident-geo/internal/config"
	"github.com/andeanwatch/incident-geo/internal/domain"
)

// Writer produces resolved locations to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes a batch of output events in a single WriteMessages
// call for efficiency.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i, e := range events {
		msgs[i] = kafkago.Message{
			Key:     e.Key,
			Value:   e.Value,
			Headers: mapHeaders(e.Headers),
		}
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

// Close closes the underlying Kafka writer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// mapHeaders converts a header map into kafka-go headers in sorted key
// order, so the wire layout is stable across runs.
func mapHeaders(headers map[string]string) []kafkago.Header {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafkago.Header{Key: k, Value: []byte(headers[k])})
	}
	return out
}
