// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the full schema.
// The pool is pinned to one connection so every query sees the same database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a verified user with the given name and password "password123".
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Username:      username,
		Email:         username + "@example.com",
		Password:      string(hash),
		Role:          models.RoleUser,
		EmailVerified: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateAdmin inserts a user holding the admin role.
func CreateAdmin(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := CreateUser(t, db, username)
	require.NoError(t, db.Model(user).Update("role", models.RoleAdmin).Error)
	user.Role = models.RoleAdmin
	return user
}

// CreatePost inserts a post by the author without any terms.
func CreatePost(t *testing.T, db *gorm.DB, authorID uint, title string) *models.Post {
	t.Helper()

	post := &models.Post{
		Title:   title,
		Content: "Some content long enough to pass validation.",
		UserID:  authorID,
	}
	require.NoError(t, db.Omit("User", "Categories", "Tags").Create(post).Error)
	return post
}

// CreateComment inserts a comment, optionally as a reply.
func CreateComment(t *testing.T, db *gorm.DB, postID, userID uint, parentID *uint, text string) *models.Comment {
	t.Helper()

	comment := &models.Comment{PostID: postID, UserID: userID, ParentID: parentID, Text: text}
	require.NoError(t, db.Omit("User").Create(comment).Error)
	return comment
}
