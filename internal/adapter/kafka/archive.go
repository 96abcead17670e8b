package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/tempest-station-bridge/internal/publish"
)

// Archive produces entity state changes to a Kafka topic for long-term
// storage and downstream analytics. It implements publish.Sink.
type Archive struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewArchive creates a Kafka producer for the archive topic.
func NewArchive(brokers []string, topic string, logger *slog.Logger) *Archive {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Archive{writer: w, logger: logger}
}

// PublishState appends the state change to the archive topic, keyed by entity
// ID so per-entity ordering is preserved across partitions.
func (a *Archive) PublishState(ctx context.Context, state publish.EntityState) error {
	msg, err := serializeState(state)
	if err != nil {
		return err
	}
	return a.writer.WriteMessages(ctx, msg)
}

// PublishAvailability is a no-op: the archive keeps the observation history,
// not the liveness of entities.
func (a *Archive) PublishAvailability(_ context.Context, _ string, _ bool) error {
	return nil
}

func (a *Archive) Close() error {
	return a.writer.Close()
}

// serializeState marshals an entity state into a Kafka message.
func serializeState(state publish.EntityState) (kafkago.Message, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize entity state: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(state.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station", Value: []byte(state.Reading.Station)},
			{Key: "observed_at", Value: []byte(state.Reading.ObservedAt.Format(time.RFC3339))},
		},
	}, nil
}
