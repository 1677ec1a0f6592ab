// Package db provides the embedded goose migrations and seed data.
package db

import "embed"

// Migrations holds the goose SQL migrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Medicines is the default catalog used by seed-db.
//
//go:embed seed/medicines.json
var Medicines []byte
