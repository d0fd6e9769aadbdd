package store

import (
	"database/sql"
	"testing"

	"github.com/himmelstrup/timepush/internal/database"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	u, err := NewUserStore(db).Create(name, name+"@example.com")
	require.NoError(t, err, "create user")
	return u.ID
}
