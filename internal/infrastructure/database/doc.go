// Package database provides SQLite connectivity for the factory data store.
//
// This package manages:
//   - the connection, with foreign keys on and optional WAL mode
//   - goose schema migrations over an embedded filesystem
//   - health checks and pool statistics
//
// All queries issued through this package's callers use ? placeholders.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
