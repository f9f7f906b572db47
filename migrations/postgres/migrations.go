// Package postgres embeds the PostgreSQL schema migration files.
package postgres

import "embed"

//go:embed *.up.sql
var Files embed.FS
