package database_test

import (
	"testing"

	"courseportal/config"
	"courseportal/database"
	"courseportal/database/dbtest"
	"courseportal/models"
	"courseportal/models/course"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratesSchema(t *testing.T) {
	db := dbtest.Open(t)

	for _, table := range []any{&models.User{}, &models.LoginTracking{}, &models.RevokedToken{}, &course.Course{}, &course.CourseVersion{}, &course.Enrollment{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
	assert.True(t, db.Migrator().HasIndex(&course.Enrollment{}, "ActiveKey"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(config.DBConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
}
