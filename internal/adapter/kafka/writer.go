package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/config"
	"github.com/couchcryptid/forecast-point-service/internal/ingest"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes ingest-completion events to a Kafka topic.
// It implements ingest.RunPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishRun serializes and publishes one model-run ingest event so
// downstream consumers (cache invalidators, monitors) learn about fresh
// data.
func (w *Writer) PublishRun(ctx context.Context, ev ingest.RunEvent) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RunEvent into a Kafka message.
func serializeToMessage(ev ingest.RunEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.Model),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "model", Value: []byte(ev.Model)},
			{Key: "ingested_at", Value: []byte(ev.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}
