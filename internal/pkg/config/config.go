package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	SportsData SportsDataConfig `yaml:"sports_data"`
	Processor  ProcessorConfig  `yaml:"processor"`
	Games      GamesConfig      `yaml:"games"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "memory"
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables the cache and the cross-replica lock
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SportsDataConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout"`
	MinInterval     time.Duration `yaml:"min_interval"`      // Minimum gap between two API requests
	LiveCacheTTL    time.Duration `yaml:"live_cache_ttl"`    // TTL for rounds that are still being played
	SettledCacheTTL time.Duration `yaml:"settled_cache_ttl"` // TTL for rounds where every fixture is settled
}

type ProcessorConfig struct {
	AsyncEnabled bool          `yaml:"async_enabled"`
	Interval     time.Duration `yaml:"interval"`
	RunTimeout   time.Duration `yaml:"run_timeout"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

type GamesConfig struct {
	MinEntries        int     `yaml:"min_entries"`        // Instances with fewer entries are cancelled at start
	CommissionPercent float64 `yaml:"commission_percent"` // Platform cut taken from each pot
	RaceTarget        int     `yaml:"race_target"`        // Goals needed in Race to 33
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // DEBUG, INFO, WARN, ERROR
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // Optional: also append JSON logs to this file
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyEnv()
	return config, nil
}

// Default returns a config with every optional value filled in
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Storage: StorageConfig{Driver: "postgres"},
		SportsData: SportsDataConfig{
			BaseURL:         "https://api.football-data.org/v4",
			Timeout:         15 * time.Second,
			MinInterval:     6 * time.Second,
			LiveCacheTTL:    2 * time.Minute,
			SettledCacheTTL: 24 * time.Hour,
		},
		Processor: ProcessorConfig{
			AsyncEnabled: true,
			Interval:     10 * time.Minute,
			RunTimeout:   5 * time.Minute,
			LockTTL:      10 * time.Minute,
		},
		Games: GamesConfig{
			MinEntries:        2,
			CommissionPercent: 10,
			RaceTarget:        33,
		},
		Logging: LoggingConfig{Level: "INFO", Format: "text"},
	}
}

// ApplyEnv overrides secrets and endpoints from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SPORTS_DATA_API_KEY"); v != "" {
		c.SportsData.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if chatID, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = chatID
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks settings that have no sensible default
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres DSN is required (config postgres.dsn or POSTGRES_DSN env)")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.SportsData.BaseURL == "" {
		return fmt.Errorf("sports_data.base_url is required")
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("server.read_header_timeout must be positive")
	}
	if c.Processor.AsyncEnabled && c.Processor.Interval <= 0 {
		return fmt.Errorf("processor.interval must be positive when async is enabled")
	}
	if c.Games.CommissionPercent < 0 || c.Games.CommissionPercent >= 100 {
		return fmt.Errorf("games.commission_percent must be in [0, 100)")
	}
	if c.Games.RaceTarget <= 0 {
		return fmt.Errorf("games.race_target must be positive")
	}
	return nil
}
