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

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("VERSION", "1.0.0")
	t.Setenv("HTTP_RPC_ENDPOINT", "http://localhost:8545")
	t.Setenv("WS_RPC_ENDPOINT", "ws://localhost:8546")
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_PORT", "5432")
	t.Setenv("POSTGRES_USER", "postgres")
	t.Setenv("POSTGRES_PASSWORD", "postgres")
	t.Setenv("POSTGRES_DATABASE", "indexer")
	t.Setenv("POSTGRES_CREATE_TABLE_ORDER", "configuration,blocks,transactions")
	t.Setenv("NB_OF_WS_CONNECTIONS", "3")
	t.Setenv("NB_OF_DB_CONNECTIONS", "2")
	t.Setenv("START_BLOCK", "100")
	t.Setenv("END_BLOCK", "200")
	t.Setenv("LOG_LEVEL", "debug")
}

func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "ws://localhost:8546", cfg.WSRPCEndpoint)
	assert.Equal(t, 3, cfg.NumWSConnections)
	assert.Equal(t, 2, cfg.NumDBConnections)
	assert.Equal(t, int64(100), cfg.StartBlock)
	assert.Equal(t, int64(200), cfg.EndBlock)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"configuration", "blocks", "transactions"}, cfg.Postgres.CreateTableOrder)
	assert.Equal(t, int64(DefaultMaxConcurrency), cfg.MaxConcurrency)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadMissingRequiredVar(t *testing.T) {
	setRequired(t)
	// t.Setenv registers the restore; the variable itself must be absent,
	// since even an empty value counts as set.
	os.Unsetenv("WS_RPC_ENDPOINT")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WS_RPC_ENDPOINT")
}

func TestLoadOptionalCollaborators(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BLOCKSCOUT_ENDPOINT", "https://blockscout.example")
	t.Setenv("MAX_CONCURRENCY", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "https://blockscout.example", cfg.BlockscoutEndpoint)
	assert.Equal(t, int64(25), cfg.MaxConcurrency)
}

func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{Host: "h", Port: "5432", User: "u", Password: "p", Database: "d"}
	assert.Equal(t, "host=h port=5432 user=u password=p", pg.DSN())
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d", pg.DatabaseDSN())
}
