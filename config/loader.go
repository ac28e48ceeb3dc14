// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		SkipEnvSubstitution: false,
		SkipValidation:      false,
	}
}

// Load loads configuration with automatic environment detection
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		errs := ValidateConfiguration(cfg)
		for _, e := range errs {
			if e.Level == "error" {
				return nil, fmt.Errorf("configuration validation failed: %s - %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

// loadConfigFile loads a single config file
func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides config with environment variables
func applyEnvironmentOverrides(cfg *Config) {
	if uri := os.Getenv("SAGE_VAULT_URI"); uri != "" {
		if cfg.Vault == nil {
			cfg.Vault = &VaultConfig{}
		}
		cfg.Vault.DefaultURI = uri
	}
	if method := os.Getenv("SAGE_VAULT_KEY_METHOD"); method != "" && cfg.Vault != nil {
		cfg.Vault.DefaultKeyMethod = method
	}

	if logLevel := os.Getenv("SAGE_LOG_LEVEL"); logLevel != "" && cfg.Logging != nil {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("SAGE_LOG_FORMAT"); logFormat != "" && cfg.Logging != nil {
		cfg.Logging.Format = logFormat
	}

	if os.Getenv("SAGE_METRICS_ENABLED") == "true" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = true
	}
	if os.Getenv("SAGE_METRICS_ENABLED") == "false" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Level   string // "error", "warning", "info"
}

// ValidateConfiguration validates the entire configuration.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Vault != nil {
		errs = append(errs, validateVaultConfig(cfg.Vault)...)
	}
	if cfg.Session != nil {
		errs = append(errs, validateSessionConfig(cfg.Session)...)
	}
	errs = append(errs, validateEnvironment(cfg.Environment)...)

	return errs
}

func validateVaultConfig(cfg *VaultConfig) []ValidationError {
	var errs []ValidationError

	if cfg.DefaultURI == "" {
		errs = append(errs, ValidationError{
			Field:   "Vault.DefaultURI",
			Message: "no default store URI configured; callers must pass one explicitly",
			Level:   "info",
		})
	}

	switch cfg.DefaultKeyMethod {
	case "", "raw", "kdf:pbkdf2":
	default:
		errs = append(errs, ValidationError{
			Field:   "Vault.DefaultKeyMethod",
			Message: fmt.Sprintf("unknown key method %q (valid: raw, kdf:pbkdf2)", cfg.DefaultKeyMethod),
			Level:   "error",
		})
	}

	if cfg.KDFIterations < 0 {
		errs = append(errs, ValidationError{
			Field:   "Vault.KDFIterations",
			Message: "KDF iteration count cannot be negative",
			Level:   "error",
		})
	} else if cfg.DefaultKeyMethod == "kdf:pbkdf2" && cfg.KDFIterations < 10_000 {
		errs = append(errs, ValidationError{
			Field:   "Vault.KDFIterations",
			Message: "fewer than 10000 PBKDF2 iterations is weak for passphrase-derived keys",
			Level:   "warning",
		})
	}

	return errs
}

func validateSessionConfig(cfg *SessionConfig) []ValidationError {
	var errs []ValidationError

	if cfg.MaxIdleTime < 0 {
		errs = append(errs, ValidationError{
			Field:   "Session.MaxIdleTime",
			Message: "max idle time cannot be negative",
			Level:   "error",
		})
	}
	if cfg.CleanupInterval < 0 {
		errs = append(errs, ValidationError{
			Field:   "Session.CleanupInterval",
			Message: "cleanup interval cannot be negative",
			Level:   "error",
		})
	}
	if cfg.MaxSessions < 0 {
		errs = append(errs, ValidationError{
			Field:   "Session.MaxSessions",
			Message: "max sessions cannot be negative",
			Level:   "error",
		})
	}

	return errs
}

func validateEnvironment(env string) []ValidationError {
	var errs []ValidationError

	validEnvs := []string{"local", "development", "staging", "production"}
	env = strings.ToLower(env)

	valid := false
	for _, v := range validEnvs {
		if env == v {
			valid = true
			break
		}
	}

	if !valid {
		errs = append(errs, ValidationError{
			Field:   "Environment",
			Message: fmt.Sprintf("invalid environment: %s (valid: %v)", env, validEnvs),
			Level:   "error",
		})
	}

	if env == "production" {
		errs = append(errs, ValidationError{
			Field:   "Environment",
			Message: "running in production mode - ensure pass keys are sourced from a secrets manager, not config files",
			Level:   "info",
		})
	}

	return errs
}

// PrintValidationErrors prints validation results in a formatted way.
func PrintValidationErrors(errs []ValidationError) {
	if len(errs) == 0 {
		fmt.Println("configuration is valid")
		return
	}

	for _, e := range errs {
		if e.Level == "error" {
			fmt.Printf("ERROR: %s - %s\n", e.Field, e.Message)
		}
	}
	for _, e := range errs {
		if e.Level == "warning" {
			fmt.Printf("WARNING: %s - %s\n", e.Field, e.Message)
		}
	}
	for _, e := range errs {
		if e.Level == "info" {
			fmt.Printf("INFO: %s - %s\n", e.Field, e.Message)
		}
	}
}
