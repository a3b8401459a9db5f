package migrations

import "embed"

// Migrations holds the schema files applied by golang-migrate on start up.
//
//go:embed *.sql
var Migrations embed.FS
