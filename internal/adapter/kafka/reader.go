// Package kafka adapts segmentio/kafka-go readers and writers to the
// pipeline's extractor and loader interfaces.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/andeanwatch/incident-geo/internal/config"
	"github.com/andeanwatch/incident-geo/internal/domain"
)

// Reader consumes incident records from the source topic as part of a
// consumer group. It implements pipeline.BatchExtractor.
type Reader struct {
	reader  *kafkago.Reader
	maxWait time.Duration
	logger  *slog.Logger
}

// NewReader creates a Kafka consumer for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaSourceTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.BatchFlushInterval,
	})
	return &Reader{reader: r, maxWait: cfg.BatchFlushInterval, logger: logger}
}

// ExtractBatch fetches up to batchSize messages. The first fetch blocks on
// the caller's context; once the batch is non-empty each further fetch gets
// the flush interval as a deadline, so a trickle of messages still ships in
// bounded time. Offsets are not committed here: each RawEvent carries a
// Commit closure the pipeline invokes after the message is persisted.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	var batch []domain.RawEvent

	for len(batch) < batchSize {
		fetchCtx := ctx
		var cancel context.CancelFunc
		if len(batch) > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, r.maxWait)
		}

		msg, err := r.reader.FetchMessage(fetchCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if len(batch) > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return batch, nil
			}
			return batch, err
		}

		batch = append(batch, r.mapMessageToRawEvent(msg))
	}

	return batch, nil
}

// Close closes the underlying Kafka reader.
func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}
