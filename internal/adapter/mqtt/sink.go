package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/couchcryptid/tempest-station-bridge/internal/publish"
)

const publishTimeout = 5 * time.Second

// Options configures the MQTT sink.
type Options struct {
	BrokerURL       string // e.g. tcp://mosquitto:1883
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string // state/availability topics, e.g. "tempest"
	DiscoveryPrefix string // Home Assistant discovery root, e.g. "homeassistant"
}

// Sink publishes entity state to an MQTT broker using the Home Assistant
// discovery convention: a retained config message per entity, retained state
// messages, and per-entity availability topics.
type Sink struct {
	client mqtt.Client
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	discovered map[string]bool
}

// NewSink creates the sink and its underlying paho client. The broker sees
// "offline" on the bridge availability topic via last will if the process
// dies without a clean disconnect.
func NewSink(opts Options, logger *slog.Logger) *Sink {
	s := &Sink{
		opts:       opts,
		logger:     logger,
		discovered: make(map[string]bool),
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.BrokerURL)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetCleanSession(true)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)
	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)
	co.SetWill(bridgeAvailabilityTopic(opts.TopicPrefix), "offline", 1, true)

	co.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", opts.BrokerURL)
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(co)
	return s
}

// Connect establishes the broker connection and announces the bridge online.
func (s *Sink) Connect(ctx context.Context) error {
	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: mqtt connect: %v", domain.ErrConnectivity, err)
	}

	return s.send(bridgeAvailabilityTopic(s.opts.TopicPrefix), "online", true)
}

// PublishState sends the discovery config (once per entity) and the retained
// state message.
func (s *Sink) PublishState(_ context.Context, state publish.EntityState) error {
	if err := s.ensureDiscovered(state); err != nil {
		return err
	}
	return s.send(stateTopic(s.opts.TopicPrefix, state.ID), statePayload(state.Reading), true)
}

// PublishAvailability flips the entity's availability topic.
func (s *Sink) PublishAvailability(_ context.Context, entityID string, available bool) error {
	payload := "offline"
	if available {
		payload = "online"
	}
	return s.send(availabilityTopic(s.opts.TopicPrefix, entityID), payload, true)
}

// Close announces the bridge offline and disconnects.
func (s *Sink) Close() {
	if err := s.send(bridgeAvailabilityTopic(s.opts.TopicPrefix), "offline", true); err != nil {
		s.logger.Warn("offline announcement failed", "error", err)
	}
	s.client.Disconnect(250)
	s.logger.Info("mqtt disconnected")
}

func (s *Sink) ensureDiscovered(state publish.EntityState) error {
	s.mu.Lock()
	done := s.discovered[state.ID]
	s.mu.Unlock()
	if done {
		return nil
	}

	payload, err := json.Marshal(discoveryConfig(s.opts, state))
	if err != nil {
		return fmt.Errorf("marshal discovery config: %w", err)
	}
	if err := s.send(configTopic(s.opts.DiscoveryPrefix, state.ID), string(payload), true); err != nil {
		return err
	}

	s.mu.Lock()
	s.discovered[state.ID] = true
	s.mu.Unlock()

	s.logger.Debug("entity announced", "entity", state.ID)
	return nil
}

func (s *Sink) send(topic, payload string, retained bool) error {
	token := s.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: publish timeout on %s", domain.ErrConnectivity, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", domain.ErrConnectivity, topic, err)
	}
	return nil
}

// --- topics and payloads ---

func stateTopic(prefix, entityID string) string {
	return fmt.Sprintf("%s/%s/state", prefix, entityID)
}

func availabilityTopic(prefix, entityID string) string {
	return fmt.Sprintf("%s/%s/availability", prefix, entityID)
}

func bridgeAvailabilityTopic(prefix string) string {
	return prefix + "/bridge/availability"
}

func configTopic(discoveryPrefix, entityID string) string {
	return fmt.Sprintf("%s/sensor/%s/config", discoveryPrefix, entityID)
}

// statePayload renders the reading value the way Home Assistant expects on a
// sensor state topic: the bare value, text for enum-like readings.
func statePayload(r domain.Reading) string {
	if r.IsText() {
		return r.Text
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// entityConfig is the Home Assistant MQTT discovery document.
type entityConfig struct {
	Name              string       `json:"name"`
	UniqueID          string       `json:"unique_id"`
	StateTopic        string       `json:"state_topic"`
	AvailabilityTopic string       `json:"availability_topic"`
	UnitOfMeasurement string       `json:"unit_of_measurement,omitempty"`
	Device            entityDevice `json:"device"`
}

type entityDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

func discoveryConfig(opts Options, state publish.EntityState) entityConfig {
	r := state.Reading
	return entityConfig{
		Name:              string(r.Name),
		UniqueID:          state.ID,
		StateTopic:        stateTopic(opts.TopicPrefix, state.ID),
		AvailabilityTopic: availabilityTopic(opts.TopicPrefix, state.ID),
		UnitOfMeasurement: r.Unit,
		Device: entityDevice{
			Identifiers:  []string{r.Station},
			Name:         "Tempest " + r.Station,
			Manufacturer: "WeatherFlow",
			Model:        "Tempest",
		},
	}
}
