// Package dbtest opens throwaway sqlite databases for store tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"courseportal/config"
	"courseportal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Open returns a migrated in-memory database private to the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(config.DBConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name),
	})
	require.NoError(t, err)

	t.Cleanup(func() { database.Close(db) })
	return db
}
