// Package config загружает настройки приложения из .env, config.yml и окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-me-in-production"

// Config - настройки процесса.
type Config struct {
	Env             string `mapstructure:"APP_ENV"`
	Port            string `mapstructure:"PORT"`
	Storage         string `mapstructure:"STORAGE"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	RedisURL        string `mapstructure:"REDIS_URL"`
	JWTSecret       string `mapstructure:"JWT_SECRET"`
	BlobDriver      string `mapstructure:"BLOB_DRIVER"`
	BlobDir         string `mapstructure:"BLOB_DIR"`
	BlobPublicURL   string `mapstructure:"BLOB_PUBLIC_URL"`
	CloudinaryURL   string `mapstructure:"CLOUDINARY_URL"`
	EventsTransport string `mapstructure:"EVENTS_TRANSPORT"`
	EventsRelayURL  string `mapstructure:"EVENTS_RELAY_URL"`
	EventsSlotDir   string `mapstructure:"EVENTS_SLOT_DIR"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogFormat       string `mapstructure:"LOG_FORMAT"`
	Seed            int    `mapstructure:"SEED"`
}

var defaults = map[string]any{
	"APP_ENV":          "development",
	"PORT":             "8080",
	"STORAGE":          "in-memory",
	"DATABASE_URL":     "",
	"REDIS_URL":        "",
	"JWT_SECRET":       defaultJWTSecret,
	"BLOB_DRIVER":      "fs",
	"BLOB_DIR":         "./data/blobs",
	"BLOB_PUBLIC_URL":  "http://localhost:8080/storage",
	"CLOUDINARY_URL":   "",
	"EVENTS_TRANSPORT": "auto",
	"EVENTS_RELAY_URL": "",
	"EVENTS_SLOT_DIR":  "",
	"LOG_LEVEL":        "info",
	"LOG_FORMAT":       "text",
	"SEED":             0,
}

// Load читает .env (если есть), затем config.yml из paths и переменные окружения.
// Окружение имеет приоритет над файлом.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.EventsTransport = strings.ToLower(strings.TrimSpace(cfg.EventsTransport))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// IsProduction сообщает, запущен ли процесс в боевом окружении.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate проверяет обязательные значения. В production правила строже.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Storage {
	case "in-memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for postgres storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	switch c.BlobDriver {
	case "fs":
	case "cloudinary":
		if c.CloudinaryURL == "" {
			return errors.New("CLOUDINARY_URL must be set for cloudinary blob driver")
		}
	default:
		return fmt.Errorf("unknown BLOB_DRIVER %q", c.BlobDriver)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.Storage == "in-memory" {
			log.Println("WARNING: in-memory storage in production loses all data on restart.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}
	return nil
}
