// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

// notFoundOr maps gorm's record-not-found to a NOT_FOUND AppError and
// anything else to an internal error.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}
