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

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "simple variable substitution",
			input:    "${TEST_VAR}",
			envVars:  map[string]string{"TEST_VAR": "value123"},
			expected: "value123",
		},
		{
			name:     "variable with default - variable exists",
			input:    "${TEST_VAR:default}",
			envVars:  map[string]string{"TEST_VAR": "actual"},
			expected: "actual",
		},
		{
			name:     "variable with default - variable missing",
			input:    "${MISSING_VAR:default}",
			envVars:  map[string]string{},
			expected: "default",
		},
		{
			name:     "multiple variables in string",
			input:    "postgres://${HOST}:${PORT}/vault",
			envVars:  map[string]string{"HOST": "localhost", "PORT": "5432"},
			expected: "postgres://localhost:5432/vault",
		},
		{
			name:     "variable with empty default",
			input:    "${EMPTY:}",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "no variables",
			input:    "plain text",
			envVars:  map[string]string{},
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			assert.Equal(t, tt.expected, SubstituteEnvVars(tt.input))
		})
	}
}

func TestGetEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		value    string
		expected string
	}{
		{"SAGE_ENV set", "SAGE_ENV", "production", "production"},
		{"ENVIRONMENT set", "ENVIRONMENT", "staging", "staging"},
		{"no env var - defaults to development", "", "", "development"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("SAGE_ENV")
			os.Unsetenv("ENVIRONMENT")

			if tt.envVar != "" {
				os.Setenv(tt.envVar, tt.value)
				defer os.Unsetenv(tt.envVar)
			}

			assert.Equal(t, tt.expected, GetEnvironment())
		})
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected bool
	}{
		{"production environment", "production", true},
		{"development environment", "development", false},
		{"staging environment", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("SAGE_ENV", tt.env)
			defer os.Unsetenv("SAGE_ENV")

			assert.Equal(t, tt.expected, IsProduction())
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected bool
	}{
		{"development environment", "development", true},
		{"local environment", "local", true},
		{"production environment", "production", false},
		{"staging environment", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("SAGE_ENV", tt.env)
			defer os.Unsetenv("SAGE_ENV")

			assert.Equal(t, tt.expected, IsDevelopment())
		})
	}
}

func TestSubstituteEnvVarsInConfig(t *testing.T) {
	os.Setenv("TEST_URI", "postgres://test-host:5432/vault")
	os.Setenv("TEST_METHOD", "kdf:pbkdf2")
	defer os.Unsetenv("TEST_URI")
	defer os.Unsetenv("TEST_METHOD")

	cfg := &Config{
		Vault: &VaultConfig{
			DefaultURI:       "${TEST_URI}",
			DefaultKeyMethod: "${TEST_METHOD}",
		},
		Logging: &LoggingConfig{
			FilePath: "${HOME}/.sage/vault.log",
		},
	}

	SubstituteEnvVarsInConfig(cfg)

	assert.Equal(t, "postgres://test-host:5432/vault", cfg.Vault.DefaultURI)
	assert.Equal(t, "kdf:pbkdf2", cfg.Vault.DefaultKeyMethod)
}
