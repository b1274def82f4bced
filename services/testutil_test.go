package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/murmur/models"
)

// openTestDB spins up an isolated in-memory SQLite database with the full
// schema migrated. Each call gets its own named shared-cache database so
// parallel tests cannot see each other's rows.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the shared-cache database alive for the
	// whole test and serializes the concurrent liked lookups
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Like{},
		&models.Follow{},
		&models.Comment{},
		&models.CommentReaction{},
	))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := models.User{Name: name, PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createTestPost(t *testing.T, db *gorm.DB, authorID uint, text string) *models.Post {
	t.Helper()
	post := models.Post{UserID: authorID, Text: text}
	require.NoError(t, db.Create(&post).Error)
	return &post
}
