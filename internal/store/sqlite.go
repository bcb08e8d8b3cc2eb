package store

import (
	"database/sql"
	"fmt"
)

var connectionPragmas = []string{
	`PRAGMA journal_mode = WAL;`,
	`PRAGMA synchronous = NORMAL;`,
	`PRAGMA temp_store = MEMORY;`,
	`PRAGMA cache_size = -20000;`,
	`PRAGMA foreign_keys = ON;`,
	`PRAGMA busy_timeout = 5000;`,
}

func configureSQLiteConnection(db *sql.DB) error {
	if db == nil {
		return nil
	}
	// Pragmas are per connection, so the pool is pinned to one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range connectionPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}
