// Package testutil provides shared fixtures for service tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jordanlanch/estatereach/pkg/models"
)

// NewDB opens a fresh in-memory SQLite database with the full schema
// migrated. Each call gets its own database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(models.All()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CreateLead inserts a lead and returns it.
func CreateLead(t *testing.T, db *gorm.DB, lead *models.Lead) *models.Lead {
	t.Helper()
	require.NoError(t, db.Create(lead).Error)
	return lead
}
