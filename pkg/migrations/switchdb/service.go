// Package switchdb holds all the migrations for the settlement switch database
package switchdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the switch database
var Migrations = migrate.NewMigrations()
