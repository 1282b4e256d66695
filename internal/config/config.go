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

// Journal document drivers.
const (
	JournalDriverFS = "fs"
	JournalDriverS3 = "s3"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	ReferencePath string
	HikerListPath string
	ReportPath    string

	JournalDriver string
	JournalDir    string
	S3            S3Config

	// Optional sinks. Empty values disable them.
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize        int
	FetchWorkers     int
	FetchRetries     int
	SuggestThreshold float64

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxRegion    string
}

// S3Config locates hiker documents in an S3-compatible bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PathStyle bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("FETCH_WORKERS", 1)
	if err != nil || workers < 1 {
		return nil, errors.New("invalid FETCH_WORKERS: must be a positive integer")
	}

	retries, err := parseInt("FETCH_RETRIES", 2)
	if err != nil || retries < 0 {
		return nil, errors.New("invalid FETCH_RETRIES: must be a non-negative integer")
	}

	threshold, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("SUGGEST_THRESHOLD", "0.9"), 64)
	if err != nil || threshold <= 0 || threshold > 1 {
		return nil, errors.New("invalid SUGGEST_THRESHOLD: must be in (0, 1]")
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		ReferencePath: sharedcfg.EnvOrDefault("SHELTER_REFERENCE_PATH", "data/validated_shelters.csv"),
		HikerListPath: sharedcfg.EnvOrDefault("HIKER_LIST_PATH", "data/at-hikers.txt"),
		ReportPath:    sharedcfg.EnvOrDefault("REPORT_PATH", "ATS.csv"),

		JournalDriver: strings.ToLower(sharedcfg.EnvOrDefault("JOURNAL_DRIVER", JournalDriverFS)),
		JournalDir:    sharedcfg.EnvOrDefault("JOURNAL_DIR", "data/hikers"),
		S3: S3Config{
			Bucket:    os.Getenv("JOURNAL_S3_BUCKET"),
			Region:    sharedcfg.EnvOrDefault("JOURNAL_S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("JOURNAL_S3_ENDPOINT"),
			Prefix:    os.Getenv("JOURNAL_S3_PREFIX"),
			PathStyle: strings.EqualFold(os.Getenv("JOURNAL_S3_PATH_STYLE"), "true"),
		},

		SQLitePath:   os.Getenv("REPORT_SQLITE_PATH"),
		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "shelter-stats"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BatchSize:        batchSize,
		FetchWorkers:     workers,
		FetchRetries:     retries,
		SuggestThreshold: threshold,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
		MapboxRegion:    os.Getenv("MAPBOX_REGION"),
	}

	switch cfg.JournalDriver {
	case JournalDriverFS:
		if cfg.JournalDir == "" {
			return nil, errors.New("JOURNAL_DIR is required for the fs journal driver")
		}
	case JournalDriverS3:
		if cfg.S3.Bucket == "" {
			return nil, errors.New("JOURNAL_S3_BUCKET is required for the s3 journal driver")
		}
	default:
		return nil, fmt.Errorf("unknown JOURNAL_DRIVER %q", cfg.JournalDriver)
	}
	if cfg.ReferencePath == "" {
		return nil, errors.New("SHELTER_REFERENCE_PATH is required")
	}
	if cfg.HikerListPath == "" {
		return nil, errors.New("HIKER_LIST_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}

func parseBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(s)
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
