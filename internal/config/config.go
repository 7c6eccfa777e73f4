package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Consensus/internal/fairness"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	// RateLimit is requests per minute per client IP on the API. 0 disables it.
	RateLimit int `yaml:"rate_limit"`
}

// DatabaseConfig selects Postgres when URL is set, the in-memory store otherwise.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig enables the profile cache when Addr is set.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type EngineConfig struct {
	DefaultMode    string `yaml:"default_mode"`
	MaxCandidates  int    `yaml:"max_candidates"`
	Parallelism    int    `yaml:"parallelism"`
	HeuristicsFile string `yaml:"heuristics_file"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// Validate rejects engine settings the selector cannot run with.
func (e EngineConfig) Validate() error {
	if _, err := fairness.ParseMode(e.DefaultMode); err != nil {
		return fmt.Errorf("engine.default_mode: %w", err)
	}
	if e.MaxCandidates <= 0 {
		return fmt.Errorf("engine.max_candidates must be positive, got %d", e.MaxCandidates)
	}
	if e.Parallelism <= 0 {
		return fmt.Errorf("engine.parallelism must be positive, got %d", e.Parallelism)
	}
	return nil
}

// SlogLevel maps logging.level onto slog; unknown values mean info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			RateLimit:   120,
		},
		Redis: RedisConfig{
			TTLSeconds: 300,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Engine: EngineConfig{
			DefaultMode:   string(fairness.ModeBalanced),
			MaxCandidates: 15,
			Parallelism:   4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONSENSUS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("CONSENSUS_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("CONSENSUS_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("CONSENSUS_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("CONSENSUS_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("CONSENSUS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CONSENSUS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CONSENSUS_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("CONSENSUS_REDIS_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.TTLSeconds = n
		}
	}
	if v := os.Getenv("CONSENSUS_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("CONSENSUS_DEFAULT_MODE"); v != "" {
		cfg.Engine.DefaultMode = v
	}
	if v := os.Getenv("CONSENSUS_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxCandidates = n
		}
	}
	if v := os.Getenv("CONSENSUS_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Parallelism = n
		}
	}
	if v := os.Getenv("CONSENSUS_HEURISTICS_FILE"); v != "" {
		cfg.Engine.HeuristicsFile = v
	}
	if v := os.Getenv("CONSENSUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CONSENSUS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
