package service

import (
	"context"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*fixture, *AuthService) {
	t.Helper()
	f := newFixture(t)
	verification := NewVerificationService(f.users, &mailStub{}, VerificationConfig{Enabled: false})
	return f, NewAuthService(f.users, f.tokens, verification)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	_, svc := newAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
		code string
	}{
		{"missing fields", RegisterInput{Username: "abc"}, models.CodeValidation},
		{"bad username", RegisterInput{Username: "a b", Email: "a@example.com", Password: "password123"}, models.CodeValidation},
		{"bad email", RegisterInput{Username: "abc", Email: "not-an-email", Password: "password123"}, models.CodeValidation},
		{"short password", RegisterInput{Username: "abc", Email: "a@example.com", Password: "short"}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.True(t, models.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAuthService_RegisterDuplicates(t *testing.T) {
	_, svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "original", Email: "dup@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "another", Email: "DUP@example.com", Password: "password123"})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	_, err = svc.Register(ctx, RegisterInput{Username: "original", Email: "fresh@example.com", Password: "password123"})
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestAuthService_Login(t *testing.T) {
	f, svc := newAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Username: "loginer", Email: "login@example.com", Password: "password123"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "  LOGIN@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)

	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	_, wrongPassword := svc.Login(ctx, "login@example.com", "wrong-password")
	_, unknownEmail := svc.Login(ctx, "nobody@example.com", "password123")
	assert.True(t, models.IsCode(wrongPassword, models.CodeUnauthorized))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	_, err = svc.Login(ctx, "", "")
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestAuthService_Logout(t *testing.T) {
	f, svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "leaver", Email: "leaver@example.com", Password: "password123"})
	require.NoError(t, err)
	res, err := svc.Login(ctx, "leaver@example.com", "password123")
	require.NoError(t, err)
	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)

	t.Run("without redis", func(t *testing.T) {
		cache.SetClient(nil)
		assert.True(t, models.IsCode(svc.Logout(ctx, claims), models.CodeUnavailable))
	})

	t.Run("revokes token", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		cache.SetClient(rdb)
		t.Cleanup(func() { cache.SetClient(nil) })

		require.NoError(t, svc.Logout(ctx, claims))
		_, err := f.guard.Authenticate(ctx, "Bearer "+res.Token)
		assert.True(t, models.IsCode(err, models.CodeUnauthorized))
	})
}
