// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads the YAML-driven configuration for the vault
// service: which backend to open, session limits, and how logging/metrics
// are wired up.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Vault       *VaultConfig    `yaml:"vault" json:"vault"`
	Session     *SessionConfig  `yaml:"session" json:"session"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig   `yaml:"health" json:"health"`
}

// VaultConfig describes the backend a store URI resolves against and the
// default key-derivation parameters used for passphrase-protected stores.
type VaultConfig struct {
	// DefaultURI is used by the CLI and tests when no store URI is given
	// explicitly, e.g. "sage-vault://memory" or a postgres DSN.
	DefaultURI string `yaml:"default_uri" json:"default_uri"`
	// DefaultKeyMethod names how pass_key is turned into a store
	// protection key: "raw" uses the bytes directly, "kdf:pbkdf2" derives
	// one via PBKDF2-HMAC-SHA256.
	DefaultKeyMethod string `yaml:"default_key_method" json:"default_key_method"`
	// KDFIterations is a PBKDF2 iteration count for "kdf:pbkdf2". It is
	// loaded and validated only: the memory and postgres backends each use
	// a fixed 100,000 iterations and do not read this field.
	KDFIterations int `yaml:"kdf_iterations" json:"kdf_iterations"`
	// DefaultProfile names the profile a store uses when none is given.
	DefaultProfile string `yaml:"default_profile" json:"default_profile"`
}

// SessionConfig holds idle-time, cleanup-interval, and session-count
// settings. They are loaded, defaulted, and validated here; the handle
// manager does not read them and runs no idle-session sweep.
type SessionConfig struct {
	MaxIdleTime     time.Duration `yaml:"max_idle_time" json:"max_idle_time"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	MaxSessions     int           `yaml:"max_sessions" json:"max_sessions"`
}

// LoggingConfig controls internal/logger's default logger.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig configures Prometheus scraping. The serve command always
// serves /metrics; it listens on Port when Enabled is set and on :9090
// otherwise, and does not read Path.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig describes a liveness/readiness endpoint. It is loaded and
// validated only; the CLI's serve command exposes no health endpoint.
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a file, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing the format by
// extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setDefaults fills in zero-valued fields with the service's defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Vault != nil {
		if cfg.Vault.DefaultKeyMethod == "" {
			cfg.Vault.DefaultKeyMethod = "raw"
		}
		if cfg.Vault.KDFIterations == 0 {
			cfg.Vault.KDFIterations = 100_000
		}
		if cfg.Vault.DefaultProfile == "" {
			cfg.Vault.DefaultProfile = "default"
		}
	}

	if cfg.Session != nil {
		if cfg.Session.MaxIdleTime == 0 {
			cfg.Session.MaxIdleTime = 30 * time.Minute
		}
		if cfg.Session.CleanupInterval == 0 {
			cfg.Session.CleanupInterval = 5 * time.Minute
		}
		if cfg.Session.MaxSessions == 0 {
			cfg.Session.MaxSessions = 10000
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}
}
