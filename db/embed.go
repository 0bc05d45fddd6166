// Package db provides the embedded migrations and seed data.
package db

import "embed"

// Migrations holds the versioned golang-migrate files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Seed holds the demo catalog and country list used by cmd/seed-db.
//
//go:embed seed/*.json
var Seed embed.FS
