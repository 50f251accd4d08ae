package database

import "embed"

// EmbeddedMigrations holds the migration SQL files so the deployed binary
// needs no files alongside it. Access the subtree with
// fs.Sub(EmbeddedMigrations, "migrations").
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
