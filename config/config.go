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

// Package config gathers the process environment into one immutable struct at
// startup. Nothing below the entry point reads env vars directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	// ClientVersion is the release version reported by the CLI.
	ClientVersion = "0.1.0"

	DefaultMaxConcurrency = 100
	DefaultPoolSize       = 1

	// BlocksPerHour approximates chain progress for index_last_hours,
	// assuming ~6s per block.
	BlocksPerHour = 600
)

// RequiredVars must all be present or startup aborts.
var RequiredVars = []string{
	"VERSION",
	"HTTP_RPC_ENDPOINT",
	"WS_RPC_ENDPOINT",
	"POSTGRES_HOST",
	"POSTGRES_PORT",
	"POSTGRES_USER",
	"POSTGRES_PASSWORD",
	"POSTGRES_DATABASE",
	"POSTGRES_CREATE_TABLE_ORDER",
	"NB_OF_WS_CONNECTIONS",
	"NB_OF_DB_CONNECTIONS",
	"START_BLOCK",
	"END_BLOCK",
	"LOG_LEVEL",
}

// PostgresConfig holds the relational store connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string

	// CreateTableOrder lists the SQL file stems under ./model executed in
	// order during schema bootstrap.
	CreateTableOrder []string
}

// DSN returns the connection string without a database name, used to probe
// and create the database itself.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s", p.Host, p.Port, p.User, p.Password)
}

// DatabaseDSN returns the connection string for the configured database.
func (p PostgresConfig) DatabaseDSN() string {
	return fmt.Sprintf("%s dbname=%s", p.DSN(), p.Database)
}

// Config is the full indexer configuration.
type Config struct {
	Version string

	HTTPRPCEndpoint string
	WSRPCEndpoint   string

	Postgres PostgresConfig

	NumWSConnections int
	NumDBConnections int

	StartBlock int64
	// EndBlock is -1 to index up to the chain tip.
	EndBlock int64

	LogLevel string

	MaxConcurrency int64

	BlockscoutEndpoint string
	BlockscoutAPIKey   string

	// KafkaBrokers enables chain-event publishing when non-empty.
	KafkaBrokers []string
}

// Load reads .env files and the environment into a Config. ETH_INDEXER=<name>
// selects .env.<name> over .env. Environment values already set take
// precedence over file values.
func Load() (*Config, error) {
	envFile := ".env"
	if name := os.Getenv("ETH_INDEXER"); name != "" {
		envFile = ".env." + name
	}
	if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
		// Fall back to the default file when the named one is absent.
		godotenv.Load(".env")
	}

	for _, v := range RequiredVars {
		if _, ok := os.LookupEnv(v); !ok {
			return nil, errors.Errorf("%s is not set", v)
		}
	}

	cfg := &Config{
		Version:         os.Getenv("VERSION"),
		HTTPRPCEndpoint: os.Getenv("HTTP_RPC_ENDPOINT"),
		WSRPCEndpoint:   os.Getenv("WS_RPC_ENDPOINT"),
		Postgres: PostgresConfig{
			Host:             os.Getenv("POSTGRES_HOST"),
			Port:             os.Getenv("POSTGRES_PORT"),
			User:             os.Getenv("POSTGRES_USER"),
			Password:         os.Getenv("POSTGRES_PASSWORD"),
			Database:         os.Getenv("POSTGRES_DATABASE"),
			CreateTableOrder: splitList(os.Getenv("POSTGRES_CREATE_TABLE_ORDER")),
		},
		NumWSConnections:   intEnv("NB_OF_WS_CONNECTIONS", DefaultPoolSize),
		NumDBConnections:   intEnv("NB_OF_DB_CONNECTIONS", DefaultPoolSize),
		StartBlock:         int64Env("START_BLOCK", 0),
		EndBlock:           int64Env("END_BLOCK", -1),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		MaxConcurrency:     int64Env("MAX_CONCURRENCY", DefaultMaxConcurrency),
		BlockscoutEndpoint: os.Getenv("BLOCKSCOUT_ENDPOINT"),
		BlockscoutAPIKey:   os.Getenv("BLOCKSCOUT_API_KEY"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
	}

	if cfg.NumWSConnections < 1 {
		cfg.NumWSConnections = DefaultPoolSize
	}
	if cfg.NumDBConnections < 1 {
		cfg.NumDBConnections = DefaultPoolSize
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	return cfg, nil
}

// Print writes the resolved configuration to stdout, password redacted.
func (c *Config) Print() {
	fmt.Println("Configuration:")
	for _, v := range RequiredVars {
		val := os.Getenv(v)
		if v == "POSTGRES_PASSWORD" {
			val = "********"
		}
		fmt.Printf("%-30s= %s\n", v, val)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func int64Env(key string, def int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return def
	}
	return v
}
