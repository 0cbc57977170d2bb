package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	WorkerCount        int

	// Data paths.
	GazetteerPath string
	SQLitePath    string

	// Candidate scoring.
	TopK             int
	AmbiguityGap     float64
	ScanBody         bool

	// Azure Maps geocoding configuration.
	AzureMapsKey       string
	AzureMapsEnabled   bool
	AzureMapsTimeout   time.Duration
	AzureMapsCacheSize int
	AzureMapsRPS       float64
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	flushInterval, err := envDuration("BATCH_FLUSH_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}
	azureTimeout, err := envDuration("AZURE_MAPS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	batchSize, err := envInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	workerCount, err := envInt("WORKER_COUNT", 4)
	if err != nil {
		return nil, err
	}
	topK, err := envInt("SCORER_TOP_K", 10)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("AZURE_MAPS_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	ambiguityGap, err := envFloat("AMBIGUITY_GAP", 0.05)
	if err != nil {
		return nil, err
	}
	azureRPS, err := envFloat("AZURE_MAPS_RPS", 50)
	if err != nil {
		return nil, err
	}

	azureKey := os.Getenv("AZURE_MAPS_KEY")
	azureEnabled := azureKey != ""
	if v := os.Getenv("AZURE_MAPS_ENABLED"); v != "" {
		azureEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "raw-incident-reports"),
		KafkaSinkTopic:   envOrDefault("KAFKA_SINK_TOPIC", "resolved-incident-locations"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "incident-geo-resolver"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		WorkerCount:        workerCount,

		GazetteerPath: envOrDefault("GAZETTEER_PATH", "data/gazetteer_pe.csv"),
		SQLitePath:    envOrDefault("SQLITE_PATH", "incident-geo.db"),

		TopK:         topK,
		AmbiguityGap: ambiguityGap,
		ScanBody:     os.Getenv("SCAN_BODY") == "true",

		AzureMapsKey:       azureKey,
		AzureMapsEnabled:   azureEnabled,
		AzureMapsTimeout:   azureTimeout,
		AzureMapsCacheSize: cacheSize,
		AzureMapsRPS:       azureRPS,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.GazetteerPath == "" {
		return nil, errors.New("GAZETTEER_PATH is required")
	}
	if cfg.AzureMapsEnabled && cfg.AzureMapsKey == "" {
		return nil, errors.New("AZURE_MAPS_ENABLED is true but AZURE_MAPS_KEY is not set")
	}
	if cfg.AmbiguityGap < 0 {
		return nil, errors.New("AMBIGUITY_GAP must not be negative")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}
