// Copyright 2024 The eth-indexer Authors
// This file is part of the eth-indexer library.
//
// The eth-indexer library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The eth-indexer library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the eth-indexer library. If not, see <http://www.gnu.org/licenses/>.

// Package db is the store gateway: pooled Postgres access with typed
// idempotent upserts per entity kind. Hex shaping happens here; callers hand
// over the capture objects produced by the node gateway.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/config"
	"github.com/jeongkyun-oh/eth-indexer/logutil"
)

var logger = logutil.NewModuleLogger("db")

// Pool is one connection pool to the relational store. The scheduler holds
// several and selects one per block task.
type Pool struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against the configured database, creating the
// database first when it does not exist yet.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*Pool, error) {
	if err := ensureDatabase(ctx, cfg); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN())
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	logger.Infow("connected to database", "host", cfg.Host, "database", cfg.Database)
	return &Pool{pool: pool}, nil
}

// Close releases the pool.
func (p *Pool) Close() {
	p.pool.Close()
}

func ensureDatabase(ctx context.Context, cfg config.PostgresConfig) error {
	conn, err := pgx.Connect(ctx, cfg.DSN())
	if err != nil {
		return errors.Wrap(err, "connecting to check database existence")
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", cfg.Database).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "checking database existence")
	}
	if exists {
		return nil
	}

	logger.Infow("database does not exist, creating it", "database", cfg.Database)
	// CREATE DATABASE does not accept bind parameters.
	quoted := pgx.Identifier{cfg.Database}.Sanitize()
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", quoted)); err != nil {
		return errors.Wrapf(err, "creating database %s", cfg.Database)
	}
	return nil
}

// InitSchema brings the schema up to the configured version. It reads the
// version row from the configuration table and, when absent or different,
// executes the SQL files named by CreateTableOrder under ./model in order,
// then upserts the version row. After it returns without error, all tables
// exist.
func (p *Pool) InitSchema(ctx context.Context, version string, createTableOrder []string) error {
	upToDate, err := p.schemaUpToDate(ctx, version)
	if err != nil {
		return err
	}
	if upToDate {
		logger.Infow("database is up-to-date, skipping initialization", "version", version)
		return nil
	}

	for _, stem := range createTableOrder {
		path := filepath.Join("model", stem+".sql")
		sql, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading schema file %s", path)
		}
		if _, err := p.pool.Exec(ctx, string(sql)); err != nil {
			return errors.Wrapf(err, "executing schema file %s", path)
		}
		logger.Infow("executed schema file", "file", path)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO configuration ("config_name", "config_value") VALUES ('version', $1)
		ON CONFLICT ("config_name") DO UPDATE SET "config_value" = EXCLUDED."config_value"`,
		version)
	if err != nil {
		return errors.Wrap(err, "updating schema version")
	}
	return nil
}

func (p *Pool) schemaUpToDate(ctx context.Context, version string) (bool, error) {
	var tableExists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables WHERE table_name = 'configuration'
		)`).Scan(&tableExists)
	if err != nil {
		return false, errors.Wrap(err, "checking configuration table")
	}
	if !tableExists {
		return false, nil
	}

	var stored string
	err = p.pool.QueryRow(ctx,
		`SELECT "config_value" FROM configuration WHERE "config_name" = 'version'`).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "reading schema version")
	}
	return stored == version, nil
}
