//go:build sqlite && postgres

package main

import (
	"cloudtrim/internal/config"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/storage"
	pgstore "cloudtrim/internal/storage/postgres"
	sqlitestore "cloudtrim/internal/storage/sqlite"
)

// selectStore picks PostgreSQL when database_url is set, otherwise SQLite.
func selectStore(logger observability.Logger, cfg *config.Config) storage.Store {
	if cfg.DatabaseURL != "" {
		st, err := pgstore.New(cfg.DatabaseURL)
		if err != nil {
			logger.Error("postgres init failed; falling back to sqlite", "error", err)
		} else {
			logger.Info("using postgres store")
			return st
		}
	}
	path := cfg.SQLitePath
	if path == "" {
		path = "file:cloudtrim.db?cache=shared&_fk=1"
	}
	st, err := sqlitestore.New(path)
	if err != nil {
		logger.Error("sqlite init failed; falling back to memory store", "error", err)
		return storage.NewMemoryStore()
	}
	logger.Info("using sqlite store", "path", path)
	return st
}
