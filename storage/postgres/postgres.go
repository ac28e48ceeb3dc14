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

// Package postgres implements the storage.Opener/Store/Session/Scan
// family against a PostgreSQL database reached through a pgxpool.Pool.
// Each store URI (a standard postgres:// DSN) owns one connection pool
// and one logical vault keyed by its own schema tables; a process may
// have several stores open against different databases at once.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/sage-vault/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS vault_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS vault_profiles (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS vault_entries (
	profile  TEXT NOT NULL,
	category TEXT NOT NULL,
	name     TEXT NOT NULL,
	value    BYTEA NOT NULL,
	tags     JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (profile, category, name)
);
CREATE TABLE IF NOT EXISTS vault_keys (
	profile  TEXT NOT NULL,
	name     TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '',
	tags     JSONB NOT NULL DEFAULT '{}',
	key_alg  SMALLINT NOT NULL,
	wrapped  BYTEA,
	plain    BYTEA,
	PRIMARY KEY (profile, name)
);
`

// Opener implements storage.Opener against PostgreSQL: uri is a plain
// postgres:// DSN, recognized the same way across Provision/Open/Remove.
type Opener struct{}

// NewOpener returns a storage.Opener backed by PostgreSQL.
func NewOpener() *Opener {
	return &Opener{}
}

// Provision connects to uri, creates the vault schema if absent, and
// records the store's key method and (for kdf:pbkdf2) a fresh salt in
// vault_meta. recreate drops and recreates the schema first.
func (o *Opener) Provision(ctx context.Context, uri, keyMethod string, passKey []byte, profile string, recreate bool) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", uri, err)
	}

	if recreate {
		if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS vault_meta, vault_profiles, vault_entries, vault_keys`); err != nil {
			pool.Close()
			return nil, fmt.Errorf("drop existing schema: %w", err)
		}
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	st, err := newStore(ctx, pool, keyMethod, passKey, profile, true)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

// Open connects to an already-provisioned uri and uses the key method
// recorded in vault_meta; the keyMethod argument is not consulted.
func (o *Opener) Open(ctx context.Context, uri, keyMethod string, passKey []byte, profile string) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", uri, err)
	}

	st, err := newStore(ctx, pool, keyMethod, passKey, profile, false)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

// Remove drops the vault schema at uri entirely, reporting false when no
// vault_meta table exists there.
func (o *Opener) Remove(ctx context.Context, uri string) (bool, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return false, fmt.Errorf("connect to %s: %w", uri, err)
	}
	defer pool.Close()

	var exists bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass('vault_meta') IS NOT NULL`).Scan(&exists); err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	if !exists {
		return false, nil
	}

	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS vault_meta, vault_profiles, vault_entries, vault_keys`); err != nil {
		return false, fmt.Errorf("drop schema: %w", err)
	}
	return true, nil
}
