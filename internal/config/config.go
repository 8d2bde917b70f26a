// Package config loads service configuration from the environment. A
// .env file in the working directory is read first when present; real
// environment variables take precedence over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// DefaultAdapterOrder is the priority used when AQI_ADAPTER_ORDER is unset.
var DefaultAdapterOrder = []string{"waqi", "datagov", "openweathermap"}

// Config holds all service settings.
type Config struct {
	Port     string
	Env      string
	LogLevel zerolog.Level

	WAQIToken          string
	DataGovAPIKey      string
	DataGovResourceID  string
	OpenWeatherAPIKey  string
	AdapterOrder       []string
	CacheTTL           time.Duration
	AdapterTimeout     time.Duration
	PollInterval       time.Duration
	DedupThresholdDeg  float64
	OTelEnabled        bool
	OTLPEndpoint       string
	OTelSampleRatio    float64
	PubSubProjectID    string
	PubSubSubscription string
}

// Load reads .env (if any) and the environment. Malformed values are
// reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the environment only.
func FromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Env:                getEnvOrDefault("APP_ENV", "development"),
		WAQIToken:          os.Getenv("WAQI_API_TOKEN"),
		DataGovAPIKey:      os.Getenv("DATA_GOV_API_KEY"),
		DataGovResourceID:  os.Getenv("DATA_GOV_RESOURCE_ID"),
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		AdapterOrder:       parseList(getEnvOrDefault("AQI_ADAPTER_ORDER", strings.Join(DefaultAdapterOrder, ","))),
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	cfg.CacheTTL = durationVar("CACHE_TTL", "5m", &errs)
	cfg.AdapterTimeout = durationVar("ADAPTER_TIMEOUT", "10s", &errs)
	cfg.PollInterval = durationVar("POLL_INTERVAL", "15m", &errs)

	threshold, err := strconv.ParseFloat(getEnvOrDefault("DEDUP_THRESHOLD_DEG", "0.1"), 64)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("DEDUP_THRESHOLD_DEG: %w", err))
	case threshold <= 0:
		errs = append(errs, fmt.Errorf("DEDUP_THRESHOLD_DEG: must be positive, got %v", threshold))
	}
	cfg.DedupThresholdDeg = threshold

	ratio, err := strconv.ParseFloat(getEnvOrDefault("OTEL_TRACE_SAMPLE_RATIO", "1"), 64)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("OTEL_TRACE_SAMPLE_RATIO: %w", err))
	case ratio <= 0 || ratio > 1:
		errs = append(errs, fmt.Errorf("OTEL_TRACE_SAMPLE_RATIO: must be in (0, 1], got %v", ratio))
	}
	cfg.OTelSampleRatio = ratio

	if len(cfg.AdapterOrder) == 0 {
		errs = append(errs, errors.New("AQI_ADAPTER_ORDER: no adapters listed"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func durationVar(key, def string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(getEnvOrDefault(key, def))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return 0
	}
	if d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: must be positive, got %s", key, d))
	}
	return d
}

// parseList splits a comma separated list, lower-casing entries and
// dropping blanks and repeats.
func parseList(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
