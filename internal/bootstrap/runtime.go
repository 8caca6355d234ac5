// Package bootstrap connects the runtime dependencies shared by the server and tools.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis, then applies the admin
// bootstrap. The Redis client may be nil when Redis is unreachable.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r := cache.InitRedis(cfg.RedisURL)

	if err := EnsureAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return db, r, nil
}

// EnsureAdmin grants the admin role to the account registered with
// ADMIN_EMAIL. It does nothing in production, when the variable is unset, or
// while no such account exists yet.
func EnsureAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.IsProduction() {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		return nil
	}

	var user models.User
	err := db.Select("id", "role").Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		middleware.Logger.Info("admin bootstrap skipped, account not registered", "email", email)
		return nil
	case err != nil:
		return err
	case user.IsAdmin():
		return nil
	}

	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("role", models.RoleAdmin).Error; err != nil {
		return err
	}
	middleware.Logger.Info("admin bootstrap applied", "user_id", user.ID, "email", email)
	return nil
}
