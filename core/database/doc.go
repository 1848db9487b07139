// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM to configure MySQL, Postgres or SQLite
// connections based on the application's configuration.
//
// # Connect
//
// Connect selects the dialector from Config.Driver, applies pool limits (write
// workers share the pool, so MaxOpenConns bounds concurrent write units) and
// pings the database before returning.
//
// # Schema Inspection
//
// Schema migration is not performed by this service. CheckSchema is a preflight
// that reports required tables and columns that are missing, so a run fails fast
// instead of failing every write unit.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	required, _ := database.RequiredColumns(db, &team.Team{}, &event.Event{})
//	missing, err := database.CheckSchema(db, required)
package database
