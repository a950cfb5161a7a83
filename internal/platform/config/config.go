// Package config loads service configuration from defaults, YAML files,
// a .env file and APP_-prefixed environment variables, using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize caps request bodies, photo uploads included (10MB).
	DefaultMaxRequestSize = 10 << 20

	// DefaultMaxImageSize caps a single uploaded photo (5MB).
	DefaultMaxImageSize = 5 << 20

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultTokenTTL is how long a sign-in token stays valid.
	DefaultTokenTTL = 24 * time.Hour

	// DefaultMaxOpenConns bounds the database pool.
	DefaultMaxOpenConns = 10

	// DefaultMaxIdleConns is the number of idle pooled connections kept.
	DefaultMaxIdleConns = 5

	// DefaultEnvFile is read into the process environment before loading.
	DefaultEnvFile = ".env"
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Auth      AuthConfig      `koanf:"auth"`
	Database  DatabaseConfig  `koanf:"database"`
	Images    ImagesConfig    `koanf:"images"`
	IDs       IDsConfig       `koanf:"ids"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig controls sign-in. Only AllowedEmail may obtain a token.
type AuthConfig struct {
	JWTSecret    string        `koanf:"jwt_secret"    validate:"required,min=16"`
	AllowedEmail string        `koanf:"allowed_email" validate:"required,email"`
	Issuer       string        `koanf:"issuer"        validate:"required"`
	TokenTTL     time.Duration `koanf:"token_ttl"     validate:"required,min=1m"`
}

// DatabaseConfig selects the report store.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"            validate:"required,oneof=sqlite postgres"`
	DSN             string        `koanf:"dsn"               validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"min=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"min=0"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// ImagesConfig points at the S3-compatible bucket holding report photos.
// When disabled, uploads are refused and deletions are skipped.
type ImagesConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Bucket          string `koanf:"bucket"            validate:"required_if=Enabled true"`
	Endpoint        string `koanf:"endpoint"          validate:"omitempty,url"`
	Region          string `koanf:"region"            validate:"required_if=Enabled true"`
	PublicBaseURL   string `koanf:"public_base_url"   validate:"required_if=Enabled true,omitempty,url"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	UsePathStyle    bool   `koanf:"use_path_style"`
	MaxSize         int64  `koanf:"max_size"          validate:"min=1"`
}

// IDsConfig picks the report identifier strategy.
type IDsConfig struct {
	Strategy string `koanf:"strategy" validate:"required,oneof=v7 v4"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "report-service",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "30s",
		"server.max_request_size": DefaultMaxRequestSize,
		"server.allowed_origins":  []string{"http://localhost:3000"},

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.insecure":      true,
		"telemetry.service_name":  "report-service",
		"telemetry.sampling_rate": 1.0,

		"auth.jwt_secret":    "change-me-local-secret",
		"auth.allowed_email": "admin@example.com",
		"auth.issuer":        "report-service",
		"auth.token_ttl":     DefaultTokenTTL.String(),

		"database.driver":            "sqlite",
		"database.dsn":               "file:reports.db?_pragma=busy_timeout(5000)",
		"database.max_open_conns":    DefaultMaxOpenConns,
		"database.max_idle_conns":    DefaultMaxIdleConns,
		"database.conn_max_lifetime": "30m",
		"database.auto_migrate":      true,

		"images.enabled":         false,
		"images.bucket":          "",
		"images.endpoint":        "",
		"images.region":          "auto",
		"images.public_base_url": "",
		"images.use_path_style":  false,
		"images.max_size":        DefaultMaxImageSize,

		"ids.strategy": "v7",
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix), including those from .env
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
func Load(profile string) (*Config, error) {
	err := loadEnvFile(DefaultEnvFile)
	if err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	k := koanf.New(".")

	err = k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	err = k.Load(env.Provider("APP_", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// sectionKeys maps env-var prefixes to koanf paths for keys whose names
// contain underscores themselves (APP_AUTH_JWT_SECRET -> auth.jwt_secret).
var sectionKeys = []string{
	"auth.jwt_secret",
	"auth.allowed_email",
	"auth.token_ttl",
	"database.max_open_conns",
	"database.max_idle_conns",
	"database.conn_max_lifetime",
	"database.auto_migrate",
	"images.public_base_url",
	"images.access_key_id",
	"images.secret_access_key",
	"images.use_path_style",
	"images.max_size",
	"server.read_timeout",
	"server.write_timeout",
	"server.idle_timeout",
	"server.shutdown_timeout",
	"server.request_timeout",
	"server.max_request_size",
	"server.allowed_origins",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"log.file.max_size",
	"log.file.max_backups",
	"log.file.max_age",
}

// envKey turns APP_SERVER_PORT into server.port. Known multi-word keys are
// matched first so their inner underscores survive.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "APP_"))

	for _, known := range sectionKeys {
		if strings.ReplaceAll(known, ".", "_") == key {
			return known
		}
	}

	return strings.ReplaceAll(key, "_", ".")
}

// loadEnvFile copies KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
