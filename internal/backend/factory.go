// Package backend picks and opens the record store named by configuration.
package backend

import (
	"errors"
	"fmt"
	"slices"

	"fintrack/internal/config"
	"fintrack/internal/storage"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

var backendTypes = []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}

func (bt BackendType) IsValid() bool { return slices.Contains(backendTypes, bt) }

// Config is the subset of application config that selects a store.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
	PostgresDSN  string
}

func FromAppConfig(c *config.Config) Config {
	return Config{
		Type:         BackendType(c.DataBackend),
		SQLiteDBPath: c.SQLiteDBPath,
		PostgresDSN:  c.PostgresDSN,
	}
}

// Open creates the backend described by cfg. The caller owns Close.
func Open(cfg Config) (store.Backend, error) {
	switch cfg.Type {
	case MemoryBackend:
		return memory.New(), nil
	case SQLiteBackend:
		if cfg.SQLiteDBPath == "" {
			return nil, errors.New("sqlite backend: SQLITE_DB_PATH is empty")
		}
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("sqlite backend: %w", err)
		}
		return repo, nil
	case PostgresBackend:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres backend: POSTGRES_DSN is empty")
		}
		repo, err := storage.NewPostgresRepository(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unknown backend %q, want one of %v", cfg.Type, backendTypes)
}
