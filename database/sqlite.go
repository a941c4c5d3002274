package database

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const MemoryPath = ":memory:"

// OpenSQLite opens the sqlite database at path. An in-memory database lives
// in its connection, so it is pinned to a single one.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
