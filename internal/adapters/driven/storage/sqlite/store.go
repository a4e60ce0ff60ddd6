// Package sqlite implements the document store on an embedded sqlite
// database.
package sqlite

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
)

//go:embed schema.sql
var schemaSQL string

// Ensure Store implements the full storage surface.
var _ driven.Store = (*Store)(nil)

// Store is the sqlite-backed document store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// marshalJSON encodes a value for a JSON text column; nil slices and maps
// become their empty literal instead of "null".
func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		switch v.(type) {
		case map[string]string:
			return "{}"
		default:
			return "[]"
		}
	}
	return string(data)
}

func unmarshalJSON(data string, out any) {
	if data == "" {
		return
	}
	_ = json.Unmarshal([]byte(data), out)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
