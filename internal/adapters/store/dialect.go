package store

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// dialect captures the SQL differences between the supported drivers
type dialect struct {
	name         string
	driver       string
	insertIgnore string
	migrations   []migration
	// singleConn pins the pool to one connection; SQLite has a single
	// writer and every ":memory:" connection is a separate database
	singleConn bool
}

func sqliteDialect(driver string) dialect {
	return dialect{
		name:         "sqlite",
		driver:       driver,
		insertIgnore: "INSERT OR IGNORE",
		migrations:   sqliteMigrations(),
		singleConn:   true,
	}
}

func mysqlDialect() dialect {
	return dialect{
		name:         "mysql",
		driver:       "mysql",
		insertIgnore: "INSERT IGNORE",
		migrations:   mysqlMigrations(),
	}
}

// dialectFor resolves a store driver name
func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return sqliteDialect(driver), nil
	case "mysql":
		return mysqlDialect(), nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
