package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Portal API.
	APIBaseURL    string
	APIUsername   string
	APIEmail      string
	APIPassword   string
	APITimeout    time.Duration
	APIMaxRetries int
	DiscoveryTag  string

	// Scheduling.
	Timezone     string
	RunHour      int
	RunAtStartup bool
	RunOnce      bool
	TargetDate   *time.Time
	DryRun       bool

	// Global calculation constants, overridable per location.
	Albedo          float64
	AngstromA       float64
	AngstromB       float64
	LakeCoefficient float64

	// Raster fallback.
	RasterEnabled       bool
	RasterUseAsFallback bool
	RasterDatasourceID  string
	RasterModelEurope   string
	RasterModelFallback string
	RasterModelGlobal   string
	RasterExtractMode   string
	RasterParameters    map[string]string

	// Optional result sinks.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	InfluxEnabled bool
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	apiTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("API_TIMEOUT", "30s"))
	if err != nil || apiTimeout <= 0 {
		return nil, errors.New("invalid API_TIMEOUT")
	}

	maxRetries, err := parseInt("API_MAX_RETRIES", 3, 0, 10)
	if err != nil {
		return nil, err
	}
	runHour, err := parseInt("RUN_HOUR", 1, 0, 23)
	if err != nil {
		return nil, err
	}

	targetDate, err := parseTargetDate()
	if err != nil {
		return nil, err
	}

	consts := map[string]float64{"ALBEDO": 0.23, "ANGSTROM_A": 0.25, "ANGSTROM_B": 0.5, "LAKE_COEFFICIENT": 1.05}
	for key, def := range consts {
		v, err := parseFloat(key, def)
		if err != nil {
			return nil, err
		}
		consts[key] = v
	}

	rasterParams, err := parseRasterParameters(os.Getenv("RASTER_PARAMETERS"))
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	influxURL := os.Getenv("INFLUX_URL")

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		APIBaseURL:    strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		APIUsername:   os.Getenv("API_USERNAME"),
		APIEmail:      os.Getenv("API_EMAIL"),
		APIPassword:   os.Getenv("API_PASSWORD"),
		APITimeout:    apiTimeout,
		APIMaxRetries: maxRetries,
		DiscoveryTag:  sharedcfg.EnvOrDefault("DISCOVERY_TAG", "lakeEvaporation"),

		Timezone:     sharedcfg.EnvOrDefault("PROCESSING_TIMEZONE", "UTC"),
		RunHour:      runHour,
		RunAtStartup: parseBool("RUN_AT_STARTUP", true),
		RunOnce:      parseBool("RUN_ONCE", false),
		TargetDate:   targetDate,
		DryRun:       parseBool("DRY_RUN", false),

		Albedo:          consts["ALBEDO"],
		AngstromA:       consts["ANGSTROM_A"],
		AngstromB:       consts["ANGSTROM_B"],
		LakeCoefficient: consts["LAKE_COEFFICIENT"],

		RasterEnabled:       parseBool("RASTER_ENABLED", true),
		RasterUseAsFallback: parseBool("RASTER_USE_AS_FALLBACK", true),
		RasterDatasourceID:  sharedcfg.EnvOrDefault("RASTER_DATASOURCE_ID", "1"),
		RasterModelEurope:   sharedcfg.EnvOrDefault("RASTER_MODEL_EUROPE", "icon_eu"),
		RasterModelFallback: sharedcfg.EnvOrDefault("RASTER_MODEL_EUROPE_FALLBACK", "gfs"),
		RasterModelGlobal:   sharedcfg.EnvOrDefault("RASTER_MODEL_GLOBAL", "gfs"),
		RasterExtractMode:   sharedcfg.EnvOrDefault("RASTER_EXTRACT_MODE", "strict"),
		RasterParameters:    rasterParams,

		KafkaEnabled: len(brokers) > 0,
		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "lake-evaporation-results"),

		InfluxEnabled: influxURL != "",
		InfluxURL:     influxURL,
		InfluxToken:   os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:     os.Getenv("INFLUX_ORG"),
		InfluxBucket:  sharedcfg.EnvOrDefault("INFLUX_BUCKET", "lake_evaporation"),
	}
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.APIPassword == "" {
		return errors.New("API_PASSWORD is required")
	}
	if c.APIUsername == "" && c.APIEmail == "" {
		return errors.New("API_USERNAME or API_EMAIL is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid PROCESSING_TIMEZONE: %w", err)
	}
	if c.RasterEnabled && c.RasterDatasourceID == "" {
		return errors.New("RASTER_DATASOURCE_ID is required when RASTER_ENABLED is true")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.InfluxEnabled && c.InfluxOrg == "" {
		return errors.New("INFLUX_ORG is required when INFLUX_URL is set")
	}
	return nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseBool(key string, def bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return def
}

func parseTargetDate() (*time.Time, error) {
	s := os.Getenv("TARGET_DATE")
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_DATE (want YYYY-MM-DD): %w", err)
	}
	return &d, nil
}

// parseRasterParameters reads "kind=CODE,kind=CODE" overrides.
func parseRasterParameters(s string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		kind, code, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(kind) == "" || strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("invalid RASTER_PARAMETERS entry %q", pair)
		}
		out[strings.TrimSpace(kind)] = strings.TrimSpace(code)
	}
	return out, nil
}
