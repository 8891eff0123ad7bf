// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

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
  - DI-Friendly: Passed to core components (remote client, caches) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This keeps the client Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the NestTask client core.
type Config struct {

	// Remote identity/data service
	RemoteURL    string `env:"REMOTE_URL,required"`
	RemoteAPIKey string `env:"REMOTE_API_KEY,required"`

	// Relational cache store (PostgreSQL) — secondary, best-effort redundancy
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-value cache store (Redis) — primary, also carries realtime Pub/Sub
	RedisURL string `env:"REDIS_URL,required"`

	// CacheSecret seals session payloads before they reach any cache store.
	CacheSecret string `env:"CACHE_SECRET,required"`

	// OverrideEmail is the break-glass administrative identity. A session
	// with this email is always granted the highest role, regardless of the
	// stored profile record.
	OverrideEmail string `env:"OVERRIDE_EMAIL" envDefault:"superadmin@nesttask.com"`

	// Local status surface
	StatusPort string `env:"STATUS_PORT" envDefault:"8990"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG"       envDefault:"false"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the client is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the client is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
