package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Store    StoreConfig    `json:"store"`
	Security SecurityConfig `json:"security"`
	Redis    RedisConfig    `json:"redis"`
	Audit    AuditConfig    `json:"audit"`
	Sweeper  SweeperConfig  `json:"sweeper"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StoreConfig locates the registry's bbolt database file.
type StoreConfig struct {
	Path string `json:"path"`
}

// SecurityConfig holds the JWT secret. When empty, callers are identified by
// the trusted gateway header instead.
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// RedisConfig configures the optional rate limiter. An empty URL disables it.
type RedisConfig struct {
	URL        string        `json:"url"`
	RateLimit  int           `json:"rate_limit"`
	RateWindow time.Duration `json:"rate_window"`
}

// AuditConfig configures the optional audit sink. An empty database URL
// disables audit persistence.
type AuditConfig struct {
	DatabaseURL string `json:"database_url"`
}

// SweeperConfig configures the claim finalization sweeper. An empty schedule
// disables it.
type SweeperConfig struct {
	Schedule string `json:"schedule"` // cron expression
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Local .env files override nothing already exported
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Path: "zkcarbon.db",
		},
		Redis: RedisConfig{
			RateLimit:  60,
			RateWindow: time.Minute,
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if path := os.Getenv("STORE_PATH"); path != "" {
		config.Store.Path = path
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		config.Redis.URL = url
	}
	if limit := os.Getenv("RATE_LIMIT"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			config.Redis.RateLimit = v
		}
	}
	if window := os.Getenv("RATE_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			config.Redis.RateWindow = d
		}
	}
	if url := os.Getenv("AUDIT_DATABASE_URL"); url != "" {
		config.Audit.DatabaseURL = url
	}
	if schedule := os.Getenv("SWEEPER_SCHEDULE"); schedule != "" {
		config.Sweeper.Schedule = schedule
	}
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
