package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "SecurePass12!@", false},
		{"Exactly Min Length", "abcdefgh", false},
		{"Exactly Max Bytes", strings.Repeat("a", 72), false},
		{"Too Short", "Small1!", true},
		{"Too Long", strings.Repeat("a", 73), true},
		{"Unicode Counts Runes", "ÅngströmÅ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Leading Underscore Allowed", "_writer", false},
		{"Exactly Max", strings.Repeat("a", 20), false},
		{"Too Long", strings.Repeat("a", 21), true},
		{"Too Short", "tu", true},
		{"Illegal Chars", "user@123", true},
		{"Hyphen", "user-name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	got, err := NormalizeEmail("  Writer@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "writer@example.com", got)

	for _, bad := range []string{"", "not-an-email", "Writer <writer@example.com>", "a@b"} {
		_, err := NormalizeEmail(bad)
		assert.Error(t, err, bad)
	}
}
