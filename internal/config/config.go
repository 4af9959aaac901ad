package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the warmup engine
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Warmup   WarmupConfig   `yaml:"warmup"`
	Quota    QuotaConfig    `yaml:"quota"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// Lifetime returns the connection max lifetime as a duration
func (c DatabaseConfig) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Minute
}

// RedisConfig holds Redis connection settings. Redis is optional: without
// it the engine skips interaction simulation scheduling and quota limits
// and falls back to advisory locks.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// WarmupConfig holds runner cadences and sending window settings
type WarmupConfig struct {
	ScheduleIntervalMinutes int    `yaml:"schedule_interval_minutes"`
	ExecuteIntervalMinutes  int    `yaml:"execute_interval_minutes"`
	SweepIntervalMinutes    int    `yaml:"sweep_interval_minutes"`
	MonitorIntervalMinutes  int    `yaml:"monitor_interval_minutes"`
	WindowStartHour         int    `yaml:"window_start_hour"`
	WindowEndHour           int    `yaml:"window_end_hour"`
	SenderName              string `yaml:"sender_name"`
}

// ScheduleInterval returns the daily scheduling tick cadence as a duration
func (c WarmupConfig) ScheduleInterval() time.Duration {
	return time.Duration(c.ScheduleIntervalMinutes) * time.Minute
}

// ExecuteInterval returns the execution tick cadence as a duration
func (c WarmupConfig) ExecuteInterval() time.Duration {
	return time.Duration(c.ExecuteIntervalMinutes) * time.Minute
}

// SweepInterval returns the simulation sweep cadence as a duration
func (c WarmupConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// MonitorInterval returns the health monitor cadence as a duration
func (c WarmupConfig) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalMinutes) * time.Minute
}

// QuotaConfig holds account-level send rate limits
type QuotaConfig struct {
	HourlyLimit int64 `yaml:"hourly_limit"`
	DailyLimit  int64 `yaml:"daily_limit"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Warmup.ScheduleIntervalMinutes == 0 {
		cfg.Warmup.ScheduleIntervalMinutes = 60
	}
	if cfg.Warmup.ExecuteIntervalMinutes == 0 {
		cfg.Warmup.ExecuteIntervalMinutes = 5
	}
	if cfg.Warmup.SweepIntervalMinutes == 0 {
		cfg.Warmup.SweepIntervalMinutes = 5
	}
	if cfg.Warmup.MonitorIntervalMinutes == 0 {
		cfg.Warmup.MonitorIntervalMinutes = 15
	}
	if cfg.Warmup.WindowStartHour == 0 {
		cfg.Warmup.WindowStartHour = 9
	}
	if cfg.Warmup.WindowEndHour == 0 {
		cfg.Warmup.WindowEndHour = 17
	}
	if cfg.Warmup.SenderName == "" {
		cfg.Warmup.SenderName = "Warmup Engine"
	}
	if cfg.Quota.HourlyLimit == 0 {
		cfg.Quota.HourlyLimit = 100
	}
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = 500
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
		cfg.Redis.Enabled = true
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("WARMUP_SENDER_NAME"); v != "" {
		cfg.Warmup.SenderName = v
	}
	if v := os.Getenv("WARMUP_HOURLY_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Quota.HourlyLimit = n
		}
	}
	if v := os.Getenv("WARMUP_DAILY_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Quota.DailyLimit = n
		}
	}

	return cfg, nil
}
