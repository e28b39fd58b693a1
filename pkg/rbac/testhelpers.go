package rbac

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// OpenTestDatabase connects to the PostgreSQL instance named by the
// GATEKEEPER_TEST_DATABASE environment variable. It returns nil when the
// variable is unset so callers can fall back to a throwaway container, and
// skips the test when the named database is unreachable.
func OpenTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("GATEKEEPER_TEST_DATABASE")
	if dbURL == "" {
		return nil
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("Database not reachable: %v", err)
	}
	return db
}
