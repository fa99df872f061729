package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Store backends for the session record.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SessionConfig struct {
	StorageKey    string
	Backend       string
	FilePath      string
	EntryPath     string
	CheckInterval time.Duration
	RedirectDelay time.Duration
}

type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type ObservabilityConfig struct {
	ServiceName  string
	MetricsAddr  string
	PprofAddr    string
	OTLPEndpoint string
}

type Config struct {
	Session        SessionConfig
	Redis          RedisConfig
	API            APIConfig
	Observability  ObservabilityConfig
	ServerHost     string
	ServerPort     string
	AllowedOrigins []string // besides the dashboard's own origin
	LogLevel       zapcore.Level
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.ServerHost, c.ServerPort)
}

func Load() (*Config, error) {
	var err error
	cfg := &Config{
		Session: SessionConfig{
			StorageKey: getEnvOrDefault("SESSION_STORAGE_KEY", "CURRENT_USER"),
			Backend:    getEnvOrDefault("SESSION_STORE", StoreFile),
			FilePath:   getEnvOrDefault("SESSION_FILE", defaultSessionFile()),
			EntryPath:  getEnvOrDefault("ENTRY_PATH", "/"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		},
		API: APIConfig{
			BaseURL: getEnvOrDefault("API_BASE_URL", "https://backend-churninsight-app-1.onrender.com"),
		},
		Observability: ObservabilityConfig{
			ServiceName:  getEnvOrDefault("SERVICE_NAME", "churninsight-dashboard"),
			MetricsAddr:  getEnvOrDefault("METRICS_ADDR", "127.0.0.1:9092"),
			PprofAddr:    getEnvOrDefault("PPROF_ADDR", ""),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		ServerHost:     getEnvOrDefault("SERVER_HOST", "127.0.0.1"),
		ServerPort:     getEnvOrDefault("SERVER_PORT", "8091"),
		AllowedOrigins: getListOrDefault("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.Session.CheckInterval, err = getDurationOrDefault("SESSION_CHECK_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Session.RedirectDelay, err = getDurationOrDefault("SESSION_REDIRECT_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.API.Timeout, err = getDurationOrDefault("API_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.API.MaxRetries, err = getIntOrDefault("API_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getIntOrDefault("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = zapcore.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case StoreFile:
		if c.Session.FilePath == "" {
			return fmt.Errorf("SESSION_FILE is required for the file store")
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("SESSION_STORE must be one of %s, %s, %s; got %q", StoreFile, StoreRedis, StoreMemory, c.Session.Backend)
	}

	if c.Session.CheckInterval <= 0 {
		return fmt.Errorf("SESSION_CHECK_INTERVAL must be positive")
	}
	if c.Session.RedirectDelay < 0 {
		return fmt.Errorf("SESSION_REDIRECT_DELAY must not be negative")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES must not be negative")
	}
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".churninsight", "session.json")
	}
	return filepath.Join(dir, "churninsight", "session.json")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListOrDefault splits a comma separated value, dropping empty items.
func getListOrDefault(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.TrimRight(item, "/"))
		}
	}
	return out
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
