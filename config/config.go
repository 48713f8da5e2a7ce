package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Detection  DetectionConfig  `yaml:"detection"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	SeedDefaultRooms       bool   `yaml:"seed_default_rooms"`
}

// DetectionConfig holds the detection backend and loop defaults.
type DetectionConfig struct {
	// Backend selects the detection implementation: "stub" or "http".
	Backend    string `yaml:"backend"`
	BackendURL string `yaml:"backend_url"`

	// Timeout budgets. Live mode is tighter than one-shot uploads.
	LiveTimeoutMs   int           `yaml:"live_timeout_ms"`
	UploadTimeoutMs int           `yaml:"upload_timeout_ms"`
	LiveTimeout     time.Duration `yaml:"-"`
	UploadTimeout   time.Duration `yaml:"-"`

	// Defaults for user-editable monitoring settings. Clamped on load.
	IntervalSeconds     int           `yaml:"interval_seconds"`     // 1-10
	ConfidenceThreshold float64       `yaml:"confidence_threshold"` // percent, 50-95
	StopGraceMs         int           `yaml:"stop_grace_ms"`        // bounded wait for loop teardown
	StopGrace           time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// ClampInterval bounds a detection interval to the supported 1-10s range.
func ClampInterval(seconds int) int {
	if seconds < 1 {
		return 1
	}
	if seconds > 10 {
		return 10
	}
	return seconds
}

// ClampConfidence bounds a confidence threshold to the supported 50-95 range.
func ClampConfidence(percent float64) float64 {
	if percent < 50 {
		return 50
	}
	if percent > 95 {
		return 95
	}
	return percent
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:smart-lighting.db"
	}

	if cfg.Detection.Backend == "" {
		cfg.Detection.Backend = "stub"
	}
	if cfg.Detection.LiveTimeoutMs <= 0 {
		cfg.Detection.LiveTimeoutMs = 4000
	}
	if cfg.Detection.UploadTimeoutMs <= 0 {
		cfg.Detection.UploadTimeoutMs = 15000
	}
	cfg.Detection.LiveTimeout = time.Duration(cfg.Detection.LiveTimeoutMs) * time.Millisecond
	cfg.Detection.UploadTimeout = time.Duration(cfg.Detection.UploadTimeoutMs) * time.Millisecond

	if cfg.Detection.IntervalSeconds == 0 {
		cfg.Detection.IntervalSeconds = 3
	}
	cfg.Detection.IntervalSeconds = ClampInterval(cfg.Detection.IntervalSeconds)
	if cfg.Detection.ConfidenceThreshold == 0 {
		cfg.Detection.ConfidenceThreshold = 75
	}
	cfg.Detection.ConfidenceThreshold = ClampConfidence(cfg.Detection.ConfidenceThreshold)

	if cfg.Detection.StopGraceMs <= 0 {
		cfg.Detection.StopGraceMs = 5000
	}
	cfg.Detection.StopGrace = time.Duration(cfg.Detection.StopGraceMs) * time.Millisecond

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
