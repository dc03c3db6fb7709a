package history

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DefaultDatabasePath is the default path where the conversation database is stored.
var DefaultDatabasePath = ".localchat/history.db"

// DefaultBlobKey names the row holding the conversation collection.
const DefaultBlobKey = "conversations"

// SQLiteSurface stores the value as one row of the blobs table.
type SQLiteSurface struct {
	db  *sql.DB
	key string
}

// initializeSchema creates the database schema if it doesn't exist.
func initializeSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	return err
}

// initDB ensures the database and tables exist, returning a connection.
func initDB(dataSourceName string) (*sql.DB, error) {
	dbDir := filepath.Dir(dataSourceName)
	if _, err := os.Stat(dbDir); os.IsNotExist(err) {
		err = os.MkdirAll(dbDir, 0755)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenSQLiteSurface opens (creating if needed) the database at dbPath.
func OpenSQLiteSurface(dbPath string) (*SQLiteSurface, error) {
	db, err := initDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open/initialize database at %s: %w", dbPath, err)
	}
	return &SQLiteSurface{db: db, key: DefaultBlobKey}, nil
}

func (s *SQLiteSurface) Get() (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM blobs WHERE key = ?`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", s.key, err)
	}
	return value, true, nil
}

func (s *SQLiteSurface) Set(value string) error {
	_, err := s.db.Exec(`
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		s.key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSurface) Close() error {
	return s.db.Close()
}
