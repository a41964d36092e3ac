package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sources selectable through SOURCE.
const (
	SourceKafka = "kafka"
	SourceMQTT  = "mqtt"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Source string

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	// MQTT source configuration, used when Source is "mqtt".
	MQTTBroker    string
	MQTTPort      int
	MQTTTopic     string
	MQTTClientID  string
	MQTTQueueSize int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// IndexWorkers bounds parallel index computation for batch requests.
	IndexWorkers int

	// SQLitePath enables the history store when non-empty.
	SQLitePath string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mqttPort, err := parsePositiveInt("MQTT_PORT", 1883)
	if err != nil {
		return nil, err
	}
	if mqttPort > 65535 {
		return nil, fmt.Errorf("invalid MQTT_PORT: %d", mqttPort)
	}

	mqttQueueSize, err := parsePositiveInt("MQTT_QUEUE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	indexWorkers, err := parsePositiveInt("INDEX_WORKERS", runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		Source:             sharedcfg.EnvOrDefault("SOURCE", SourceKafka),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-station-readings"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "station-heat-stress"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "heat-stress-etl"),
		MQTTBroker:         sharedcfg.EnvOrDefault("MQTT_BROKER", "localhost"),
		MQTTPort:           mqttPort,
		MQTTTopic:          sharedcfg.EnvOrDefault("MQTT_TOPIC", "stations/+/readings"),
		MQTTClientID:       sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "heat-stress-etl"),
		MQTTQueueSize:      mqttQueueSize,
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		IndexWorkers:       indexWorkers,
		SQLitePath:         os.Getenv("SQLITE_PATH"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	switch cfg.Source {
	case SourceKafka, SourceMQTT:
	default:
		return nil, fmt.Errorf("invalid SOURCE %q: must be %q or %q", cfg.Source, SourceKafka, SourceMQTT)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.Source == SourceKafka && cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
