// Package config loads aspen-engine configuration.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for aspen-engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (passwords, keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Lineage  LineageConfig  `yaml:"lineage"`

	// MigrationsPath is the directory containing SQL migration files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// StaleWorkflowHours is the age after which a started workflow is
	// considered abandoned by the maintenance sweep.
	StaleWorkflowHours int `yaml:"stale_workflow_hours" env:"STALE_WORKFLOW_HOURS" env-default:"48"`
}

// AuthConfig holds JWT verification configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// Set to false for development mode (parses tokens without verification).
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// Issuer is the accepted token issuer URL.
	Issuer string `yaml:"issuer" env:"AUTH_ISSUER" env-default:""`

	// JWKSURL is the issuer's JWKS endpoint.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"aspen"`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DB_NAME" env-default:"aspen"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"prefer"`

	MaxConnections int32 `yaml:"max_connections" env:"DB_MAX_CONNECTIONS" env-default:"25"`
}

// URL builds a connection string for pgx.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// LineageConfig holds lineage alias configuration.
type LineageConfig struct {
	// AliasesPath optionally points at a YAML file overriding the built-in
	// lineage alias table (WHO label -> wildcard patterns).
	AliasesPath string `yaml:"aliases_path" env:"LINEAGE_ALIASES_PATH" env-default:""`
}

// Load reads configuration from config.yaml (if present) and the
// environment. Environment variables take precedence.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	return cfg, nil
}

// ValidateAuth checks that token verification is usable as configured.
// Called by the server; operational scripts skip it since they never
// validate tokens.
func (c *Config) ValidateAuth() error {
	if c.Auth.EnableVerification && (c.Auth.Issuer == "" || c.Auth.JWKSURL == "") {
		return fmt.Errorf("auth verification enabled but issuer or jwks_url not configured")
	}
	return nil
}
