package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Values resolve as defaults, then the optional YAML file, then environment.
type Config struct {
	ServiceName    string
	HTTPPort       string
	DatabaseDriver string
	PostgresDSN    string
	SQLitePath     string
	AutoMigrate    bool

	BroadcastBuffer    int
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	CastRetryLimit     int
	ManualBallotLimit  int
	EventDedupTTL      time.Duration

	EnableCatalogConsumer bool
	EmbedWorker           bool
}

// fileConfig mirrors Config for the YAML overlay. Zero values leave the
// default in place.
type fileConfig struct {
	ServiceName string `yaml:"service_name"`
	HTTPPort    string `yaml:"http_port"`
	Database    struct {
		Driver      string `yaml:"driver"`
		PostgresDSN string `yaml:"postgres_dsn"`
		SQLitePath  string `yaml:"sqlite_path"`
		AutoMigrate *bool  `yaml:"auto_migrate"`
	} `yaml:"database"`
	Broadcast struct {
		Buffer int `yaml:"buffer"`
	} `yaml:"broadcast"`
	Outbox struct {
		PollInterval string `yaml:"poll_interval"`
		BatchSize    int    `yaml:"batch_size"`
	} `yaml:"outbox"`
	Engine struct {
		CastRetryLimit        int    `yaml:"cast_retry_limit"`
		ManualBallotLimit     int    `yaml:"manual_ballot_limit"`
		EventDedupTTL         string `yaml:"event_dedup_ttl"`
		EnableCatalogConsumer *bool  `yaml:"enable_catalog_consumer"`
		EmbedWorker           *bool  `yaml:"embed_worker"`
	} `yaml:"engine"`
}

func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		file, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := file.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg.ServiceName = envString("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPPort = envString("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseDriver = strings.ToLower(envString("DATABASE_DRIVER", cfg.DatabaseDriver))
	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.SQLitePath = envString("SQLITE_PATH", cfg.SQLitePath)
	cfg.AutoMigrate = envBool("AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.EnableCatalogConsumer = envBool("ENABLE_CATALOG_CONSUMER", cfg.EnableCatalogConsumer)
	cfg.EmbedWorker = envBool("EMBED_WORKER", cfg.EmbedWorker)

	var err error
	if cfg.BroadcastBuffer, err = envInt("BROADCAST_BUFFER", cfg.BroadcastBuffer); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize); err != nil {
		return Config{}, err
	}
	if cfg.CastRetryLimit, err = envInt("CAST_RETRY_LIMIT", cfg.CastRetryLimit); err != nil {
		return Config{}, err
	}
	if cfg.ManualBallotLimit, err = envInt("MANUAL_BALLOT_LIMIT", cfg.ManualBallotLimit); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.EventDedupTTL, err = envDuration("EVENT_DEDUP_TTL", cfg.EventDedupTTL); err != nil {
		return Config{}, err
	}

	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		ServiceName:           "quorum",
		HTTPPort:              "8080",
		DatabaseDriver:        DriverPostgres,
		SQLitePath:            "quorum.db",
		AutoMigrate:           true,
		BroadcastBuffer:       128,
		OutboxPollInterval:    time.Second,
		OutboxBatchSize:       100,
		CastRetryLimit:        3,
		ManualBallotLimit:     10000,
		EventDedupTTL:         7 * 24 * time.Hour,
		EnableCatalogConsumer: true,
		EmbedWorker:           true,
	}
}

func loadFile(path string) (fileConfig, error) {
	var file fileConfig
	handle, err := os.Open(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("open config file: %w", err)
	}
	defer handle.Close()

	if err := yaml.NewDecoder(handle).Decode(&file); err != nil {
		return fileConfig{}, fmt.Errorf("decode config file: %w", err)
	}
	return file, nil
}

func (f fileConfig) apply(cfg *Config) error {
	setString(&cfg.ServiceName, f.ServiceName)
	setString(&cfg.HTTPPort, f.HTTPPort)
	setString(&cfg.DatabaseDriver, strings.ToLower(f.Database.Driver))
	setString(&cfg.PostgresDSN, f.Database.PostgresDSN)
	setString(&cfg.SQLitePath, f.Database.SQLitePath)
	if f.Database.AutoMigrate != nil {
		cfg.AutoMigrate = *f.Database.AutoMigrate
	}
	if f.Engine.EnableCatalogConsumer != nil {
		cfg.EnableCatalogConsumer = *f.Engine.EnableCatalogConsumer
	}
	if f.Engine.EmbedWorker != nil {
		cfg.EmbedWorker = *f.Engine.EmbedWorker
	}
	setInt(&cfg.BroadcastBuffer, f.Broadcast.Buffer)
	setInt(&cfg.OutboxBatchSize, f.Outbox.BatchSize)
	setInt(&cfg.CastRetryLimit, f.Engine.CastRetryLimit)
	setInt(&cfg.ManualBallotLimit, f.Engine.ManualBallotLimit)

	if raw := strings.TrimSpace(f.Outbox.PollInterval); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("outbox.poll_interval: %w", err)
		}
		cfg.OutboxPollInterval = interval
	}
	if raw := strings.TrimSpace(f.Engine.EventDedupTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("engine.event_dedup_ttl: %w", err)
		}
		cfg.EventDedupTTL = ttl
	}
	return nil
}

func setString(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

func setInt(target *int, value int) {
	if value > 0 {
		*target = value
	}
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", name, raw)
	}
	return value, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
