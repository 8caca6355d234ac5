// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes, so longer passwords are refused outright.
	maxPasswordBytes = 72
)

// ValidatePassword checks if a password meets length requirements
func ValidatePassword(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", maxPasswordBytes)
	}
	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-20 characters and contain only letters, numbers, and underscores")
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address after checking its format.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return "", fmt.Errorf("email must not exceed 254 characters")
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email || !emailRegex.MatchString(email) {
		return "", fmt.Errorf("invalid email format")
	}
	return strings.ToLower(parsed.Address), nil
}
