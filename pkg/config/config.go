package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the ArchFlow importer
type Config struct {
	ArchiveDir      string        `yaml:"archive_dir"`       // Mounted directory of archival block files
	EngineURL       string        `yaml:"engine_url"`        // Execution engine RPC endpoint
	CursorDriver    string        `yaml:"cursor_driver"`     // file, postgres or redis
	CursorPath      string        `yaml:"cursor_path"`       // Path for file, DSN for postgres, addr for redis
	PollInterval    time.Duration `yaml:"poll_interval"`     // Base tailing poll interval
	MaxPollInterval time.Duration `yaml:"max_poll_interval"` // Tailing backoff cap
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	PrefetchDepth   int           `yaml:"prefetch_depth"`  // 0 disables read-ahead
	DepositAddress  string        `yaml:"deposit_address"` // System deposit bridge address
	SetHeadEvery    uint64        `yaml:"set_head_every"`  // Blocks between engine head notifications
	MetricsAddr     string        `yaml:"metrics_addr"`    // Empty disables the metrics server
}

// Load loads configuration from environment variables or a config file
func Load() (*Config, error) {
	// 1. Check if config file is specified
	if configPath := os.Getenv("ARCHFLOW_CONFIG_PATH"); configPath != "" {
		return LoadFromFile(configPath)
	}

	// 2. Fallback to env vars
	cfg := &Config{
		ArchiveDir:      getEnv("ARCHFLOW_ARCHIVE_DIR", "blocks"),
		EngineURL:       getEnv("ARCHFLOW_ENGINE_URL", "http://localhost:8551"),
		CursorDriver:    getEnv("ARCHFLOW_CURSOR_DRIVER", "file"),
		CursorPath:      getEnv("ARCHFLOW_CURSOR_PATH", "archflow-cursor.json"),
		PollInterval:    getEnvDuration("ARCHFLOW_POLL_INTERVAL", 200*time.Millisecond),
		MaxPollInterval: getEnvDuration("ARCHFLOW_MAX_POLL_INTERVAL", 5*time.Second),
		MaxRetries:      getEnvInt("ARCHFLOW_MAX_RETRIES", 5),
		RetryDelay:      getEnvDuration("ARCHFLOW_RETRY_DELAY", 1*time.Second),
		PrefetchDepth:   getEnvInt("ARCHFLOW_PREFETCH_DEPTH", 8),
		DepositAddress:  getEnv("ARCHFLOW_DEPOSIT_ADDRESS", ""),
		SetHeadEvery:    getEnvUint64("ARCHFLOW_SET_HEAD_EVERY", 100),
		MetricsAddr:     getEnv("ARCHFLOW_METRICS_ADDR", ""),
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Set defaults if missing
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.MaxPollInterval == 0 {
		cfg.MaxPollInterval = 5 * time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 1 * time.Second
	}
	if cfg.CursorDriver == "" {
		cfg.CursorDriver = "file"
	}
	if cfg.CursorPath == "" {
		cfg.CursorPath = "archflow-cursor.json"
	}
	if cfg.SetHeadEvery == 0 {
		cfg.SetHeadEvery = 100
	}

	return &cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvUint64(key string, fallback uint64) uint64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
