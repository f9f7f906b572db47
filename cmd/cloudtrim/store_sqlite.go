//go:build sqlite && !postgres

package main

import (
	"cloudtrim/internal/config"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/storage"
	sqlitestore "cloudtrim/internal/storage/sqlite"
)

// selectStore returns a SQLite-backed store when built with the 'sqlite' tag.
func selectStore(logger observability.Logger, cfg *config.Config) storage.Store {
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
