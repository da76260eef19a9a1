package db

import (
	"context"
	"database/sql"
	"testing"
)

// NewTestDB creates a fresh in-memory SQLite database with the schema applied.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}

// NewSeededTestDB is NewTestDB with the default categories inserted.
func NewSeededTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db := NewTestDB(t)
	if _, err := SeedCategories(context.Background(), db); err != nil {
		t.Fatalf("seeding test categories: %v", err)
	}
	return db
}
