//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/tempest-station-bridge/internal/adapter/kafka"
	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/couchcryptid/tempest-station-bridge/internal/observability"
	"github.com/couchcryptid/tempest-station-bridge/internal/publish"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testArchiveTopic = "test-weather-archive"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// archivedMessage holds a deserialized message read from the archive topic.
type archivedMessage struct {
	State   publish.EntityState
	Key     string
	Headers map[string]string
}

func readArchived(ctx context.Context, t *testing.T, consumer *kafkago.Reader) archivedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from archive topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var state publish.EntityState
	require.NoError(t, json.Unmarshal(msg.Value, &state), "unmarshal archive message")

	return archivedMessage{State: state, Key: string(msg.Key), Headers: headers}
}

// TestArchiveSink verifies the adapter layer: kafka.Archive writes entity
// state changes that round-trip through a real broker.
func TestArchiveSink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testArchiveTopic)

	archive := kafka.NewArchive([]string{broker}, testArchiveTopic, discardLogger())
	t.Cleanup(func() { _ = archive.Close() })

	observed := time.Date(2026, 8, 24, 15, 10, 0, 0, time.UTC)
	state := publish.EntityState{
		ID: "st-00000512_air_temperature",
		Reading: domain.Reading{
			Name:       domain.AirTemperature,
			Value:      20.5,
			Unit:       "°C",
			Station:    "ST-00000512",
			ObservedAt: observed,
		},
		UpdatedAt: observed,
		Available: true,
	}
	require.NoError(t, archive.PublishState(ctx, state))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testArchiveTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	am := readArchived(ctx, t, consumer)
	assert.Equal(t, "st-00000512_air_temperature", am.Key)
	assert.Equal(t, "ST-00000512", am.Headers["station"])
	_, err := time.Parse(time.RFC3339, am.Headers["observed_at"])
	assert.NoError(t, err, "observed_at should be valid RFC3339")

	assert.Equal(t, domain.AirTemperature, am.State.Reading.Name)
	assert.InDelta(t, 20.5, am.State.Reading.Value, 0.0001)
	assert.True(t, am.State.Available)
}

// TestStoreWithArchive wires the state store to a real archive sink and
// verifies suppression: unchanged readings produce no second message.
func TestStoreWithArchive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testArchiveTopic)

	archive := kafka.NewArchive([]string{broker}, testArchiveTopic, discardLogger())
	t.Cleanup(func() { _ = archive.Close() })

	store := publish.NewStore([]publish.Sink{archive}, 0, discardLogger(), observability.NewMetricsForTesting())

	reading := domain.Reading{
		Name:       domain.WindSpeed,
		Value:      2.3,
		Unit:       "m/s",
		Station:    "ST-00000512",
		ObservedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Publish(ctx, []domain.Reading{reading}))
	require.NoError(t, store.Publish(ctx, []domain.Reading{reading})) // suppressed

	reading.Value = 3.1
	require.NoError(t, store.Publish(ctx, []domain.Reading{reading}))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testArchiveTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readArchived(ctx, t, consumer)
	assert.InDelta(t, 2.3, first.State.Reading.Value, 0.0001)

	second := readArchived(ctx, t, consumer)
	assert.InDelta(t, 3.1, second.State.Reading.Value, 0.0001)

	// No third message: the duplicate was suppressed.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no third message on archive topic")
}
