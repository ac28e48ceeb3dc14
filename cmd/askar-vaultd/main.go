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

// askar-vaultd is a CLI front end over the handle manager: it provisions
// and opens stores, manages profiles and keys, and serves Prometheus
// metrics, all against whichever storage driver the --backend flag names.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/sage-vault/config"
)

var (
	configDir string
	backend   string
	storeURI  string
	keyMethod string
	profile   string
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "askar-vaultd",
	Short: "AEAD-backed secret vault: stores, sessions, and keys behind an opaque handle manager",
	Long: `askar-vaultd drives the handle-manager surface described in the vault
specification: provisioning and opening stores, starting sessions,
inserting and fetching AEAD-protected keys, and exporting Prometheus
metrics for everything it does.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.LoaderOptions{ConfigDir: configDir})
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfg = loaded
		if storeURI == "" && cfg.Vault != nil {
			storeURI = cfg.Vault.DefaultURI
		}
		if keyMethod == "" && cfg.Vault != nil {
			keyMethod = cfg.Vault.DefaultKeyMethod
		}
		if profile == "" && cfg.Vault != nil {
			profile = cfg.Vault.DefaultProfile
		}
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory containing environment config files")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "memory", "storage backend driver (memory, postgres)")
	rootCmd.PersistentFlags().StringVar(&storeURI, "uri", "", "store URI (defaults to vault.default_uri from config)")
	rootCmd.PersistentFlags().StringVar(&keyMethod, "key-method", "", "store protection key method: raw or kdf:pbkdf2")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "profile name (defaults to vault.default_profile)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// passKeyFromEnv reads the store's protection pass key from
// ASKAR_VAULTD_PASS_KEY so it never has to appear in a command line
// argument or shell history.
func passKeyFromEnv() []byte {
	return []byte(os.Getenv("ASKAR_VAULTD_PASS_KEY"))
}
