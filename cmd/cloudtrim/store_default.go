//go:build !sqlite && !postgres

package main

import (
	"cloudtrim/internal/config"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/storage"
)

// selectStore returns the in-memory store when built without a database tag.
// Snapshots and jobs do not survive restarts in this mode.
func selectStore(logger observability.Logger, cfg *config.Config) storage.Store {
	if cfg.DatabaseURL != "" {
		logger.Warn("database_url set, but binary not built with -tags postgres; using in-memory store")
	}
	if cfg.SQLitePath != "" {
		logger.Warn("sqlite_path set, but binary not built with -tags sqlite; using in-memory store")
	}
	logger.Info("using in-memory store")
	return storage.NewMemoryStore()
}
