package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
)

// Data source modes.
const (
	SourceLocal = "local"
	SourceCloud = "cloud"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataSource string

	// Local UDP listener.
	UDPListenAddr   string
	DiscoveryWindow time.Duration

	// Cloud REST poller.
	StationID      string
	TempestToken   string
	PollInterval   time.Duration
	APITimeout     time.Duration
	MaxAuthRetries int

	// Normalization and state.
	UnitSystem   domain.UnitSystem
	ExpiryWindow time.Duration

	// MQTT sink.
	MQTTBroker          string
	MQTTClientID        string
	MQTTUsername        string
	MQTTPassword        string
	MQTTTopicPrefix     string
	MQTTDiscoveryPrefix string

	// Kafka archive sink.
	KafkaBrokers      []string
	KafkaArchiveTopic string
	ArchiveEnabled    bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	discoveryWindow, err := parseDuration("DISCOVERY_WINDOW", "60s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "60s")
	if err != nil {
		return nil, err
	}
	apiTimeout, err := parseDuration("API_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	expiryWindow, err := parseDuration("EXPIRY_WINDOW", "5m")
	if err != nil {
		return nil, err
	}

	maxAuthRetries, err := parseCount("MAX_AUTH_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	archiveTopic := os.Getenv("KAFKA_ARCHIVE_TOPIC")
	archiveEnabled := archiveTopic != ""
	if v := os.Getenv("KAFKA_ARCHIVE_ENABLED"); v != "" {
		archiveEnabled = v == "true"
	}

	cfg := &Config{
		DataSource: sharedcfg.EnvOrDefault("DATA_SOURCE", SourceLocal),

		UDPListenAddr:   sharedcfg.EnvOrDefault("UDP_LISTEN_ADDR", ":50222"),
		DiscoveryWindow: discoveryWindow,

		StationID:      os.Getenv("STATION_ID"),
		TempestToken:   os.Getenv("TEMPEST_TOKEN"),
		PollInterval:   pollInterval,
		APITimeout:     apiTimeout,
		MaxAuthRetries: maxAuthRetries,

		UnitSystem:   domain.UnitSystem(sharedcfg.EnvOrDefault("UNIT_SYSTEM", string(domain.Metric))),
		ExpiryWindow: expiryWindow,

		MQTTBroker:          sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:        sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "tempest-bridge"),
		MQTTUsername:        os.Getenv("MQTT_USERNAME"),
		MQTTPassword:        os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:     sharedcfg.EnvOrDefault("MQTT_TOPIC_PREFIX", "tempest"),
		MQTTDiscoveryPrefix: sharedcfg.EnvOrDefault("MQTT_DISCOVERY_PREFIX", "homeassistant"),

		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaArchiveTopic: archiveTopic,
		ArchiveEnabled:    archiveEnabled,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.DataSource != SourceLocal && cfg.DataSource != SourceCloud {
		return nil, fmt.Errorf("DATA_SOURCE must be %q or %q, got %q", SourceLocal, SourceCloud, cfg.DataSource)
	}
	if cfg.DataSource == SourceCloud {
		if cfg.StationID == "" {
			return nil, errors.New("STATION_ID is required when DATA_SOURCE is cloud")
		}
		if cfg.TempestToken == "" {
			return nil, errors.New("TEMPEST_TOKEN is required when DATA_SOURCE is cloud")
		}
	}
	if !cfg.UnitSystem.Valid() {
		return nil, fmt.Errorf("UNIT_SYSTEM must be %q or %q, got %q", domain.Metric, domain.Imperial, cfg.UnitSystem)
	}
	if cfg.MQTTBroker == "" {
		return nil, errors.New("MQTT_BROKER is required")
	}
	if cfg.ArchiveEnabled {
		if cfg.KafkaArchiveTopic == "" {
			return nil, errors.New("KAFKA_ARCHIVE_ENABLED is true but KAFKA_ARCHIVE_TOPIC is not set")
		}
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when the archive sink is enabled")
		}
	}

	return cfg, nil
}

// StationKey identifies the station instance this process serves, used to
// prevent two bridges from claiming the same source.
func (c *Config) StationKey() string {
	if c.DataSource == SourceCloud {
		return "cloud:" + c.StationID
	}
	return "local:" + c.UDPListenAddr
}

func parseDuration(name, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(name, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return d, nil
}

func parseCount(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return n, nil
}
