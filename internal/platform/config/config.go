// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Mongo) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Kinbank API server.
type Config struct {

	// Server settings
	ServerPort    string `env:"SERVER_PORT"     envDefault:"8804"`
	Environment   string `env:"ENVIRONMENT"     envDefault:"development"`
	Debug         bool   `env:"DEBUG"           envDefault:"false"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8804"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath overrides the embedded SQL migrations with a directory on disk.
	MigrationPath string `env:"MIGRATION_PATH"`

	// Key-Value Store (Redis). Sessions fall back to process memory when empty.
	RedisURL string `env:"REDIS_URL"`

	// Document Store (MongoDB)
	MongoURL      string `env:"MONGO_URL,required"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"kinbank"`

	// StoreTimeout bounds every single store call.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// Credential & session lifecycle
	SessionSecret   string        `env:"SESSION_SECRET,required"`
	SessionTTL      time.Duration `env:"SESSION_TTL"       envDefault:"30m"`
	ActivationTTL   time.Duration `env:"ACTIVATION_TTL"    envDefault:"5m"`
	RecoveryCodeTTL time.Duration `env:"RECOVERY_CODE_TTL" envDefault:"60s"`
	ResetWindow     time.Duration `env:"RESET_WINDOW"      envDefault:"10m"`
	HashIterations  int           `env:"HASH_ITERATIONS"   envDefault:"100000"`

	// Outbound email (SMTP). Messages are only logged when SMTPHost is empty.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"     envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"     envDefault:"Kinbank <no-reply@kinbank.app>"`

	// Object Storage (S3-compatible). Images go to UploadDir when S3Bucket is empty.
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION"     envDefault:"auto"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	UploadDir   string `env:"UPLOAD_DIR"    envDefault:"./data/uploads"`

	// Cross-Origin Resource Sharing (comma separated origins, e.g. https://app.kinbank.app)
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects settings that would weaken the credential lifecycle.
func (c *Config) validate() error {
	if c.HashIterations < 10_000 {
		return fmt.Errorf("config: HASH_ITERATIONS must be at least 10000, got %d", c.HashIterations)
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("config: SESSION_SECRET must be at least 32 bytes")
	}
	if c.SessionTTL <= 0 || c.ActivationTTL <= 0 || c.RecoveryCodeTTL <= 0 || c.ResetWindow <= 0 {
		return fmt.Errorf("config: lifecycle durations must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("config: STORE_TIMEOUT must be positive")
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the public base URL plus every EXTRA_ORIGINS entry.
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, 4)
	if c.PublicBaseURL != "" {
		origins = append(origins, strings.TrimRight(c.PublicBaseURL, "/"))
	}
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
