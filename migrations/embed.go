// Package migrations embeds the PostgreSQL schema for the cart store.
package migrations

import "embed"

// FS holds the *.up.sql files applied at startup.
//
//go:embed *.sql
var FS embed.FS
