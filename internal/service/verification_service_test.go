package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingToken(t *testing.T, f *fixture, userID uint) string {
	t.Helper()
	var user models.User
	require.NoError(t, f.db.First(&user, userID).Error)
	require.NotNil(t, user.VerificationToken)
	return *user.VerificationToken
}

func TestVerification_FlagOff(t *testing.T) {
	f := newFixture(t)
	mail := &mailStub{}
	svc := NewVerificationService(f.users, mail, VerificationConfig{Enabled: false})
	authSvc := NewAuthService(f.users, f.tokens, svc)
	ctx := context.Background()

	res, err := authSvc.Register(ctx, RegisterInput{Username: "devuser", Email: "Dev@Example.com ", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, MsgRegisteredNoVerify, res.Message)
	assert.True(t, res.User.EmailVerified)
	assert.Nil(t, res.User.VerificationToken)
	assert.Empty(t, mail.sent)

	assert.NoError(t, svc.Verify(ctx, ""), "verify is a no-op")
	assert.NoError(t, svc.Resend(ctx, "nobody@example.com"), "resend is a no-op")
}

func TestVerification_FlagOnRoundTrip(t *testing.T) {
	f := newFixture(t)
	mail := &mailStub{}
	svc := NewVerificationService(f.users, mail, VerificationConfig{Enabled: true, ClientURL: "https://blog.example.com/"})
	authSvc := NewAuthService(f.users, f.tokens, svc)
	ctx := context.Background()

	res, err := authSvc.Register(ctx, RegisterInput{Username: "newbie", Email: "newbie@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, MsgRegisteredVerify, res.Message)
	assert.False(t, res.User.EmailVerified)

	token := pendingToken(t, f, res.User.ID)
	assert.Len(t, token, 64)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "newbie@example.com", mail.sent[0].To)
	assert.Contains(t, mail.sent[0].Text, "https://blog.example.com/verify-email?token="+token)

	require.NoError(t, svc.Verify(ctx, token))
	user, err := f.users.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	err = svc.Verify(ctx, token)
	assert.True(t, models.IsCode(err, models.CodeValidation), "tokens are single use")
}

func TestVerification_ExpiredTokenLeavesUserUnverified(t *testing.T) {
	f := newFixture(t)
	svc := NewVerificationService(f.users, &mailStub{}, VerificationConfig{Enabled: true})
	authSvc := NewAuthService(f.users, f.tokens, svc)
	ctx := context.Background()

	res, err := authSvc.Register(ctx, RegisterInput{Username: "slowpoke", Email: "slow@example.com", Password: "password123"})
	require.NoError(t, err)
	token := pendingToken(t, f, res.User.ID)

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	err = svc.Verify(ctx, token)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Equal(t, "invalid or expired verification token", err.Error())

	var user models.User
	require.NoError(t, f.db.First(&user, res.User.ID).Error)
	assert.False(t, user.EmailVerified)

	assert.Equal(t, err.Error(), svc.Verify(ctx, "unknown-token").Error(), "expired and unknown tokens read the same")
	assert.True(t, models.IsCode(svc.Verify(ctx, "  "), models.CodeValidation))
}

func TestVerification_MailFailureKeepsRegistration(t *testing.T) {
	f := newFixture(t)
	mail := &mailStub{err: errors.New("smtp down")}
	svc := NewVerificationService(f.users, mail, VerificationConfig{Enabled: true})
	authSvc := NewAuthService(f.users, f.tokens, svc)

	res, err := authSvc.Register(context.Background(), RegisterInput{Username: "unlucky", Email: "unlucky@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, MsgRegisteredMailFailed, res.Message)

	var count int64
	f.db.Model(&models.User{}).Where("email = ?", "unlucky@example.com").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestVerification_Resend(t *testing.T) {
	f := newFixture(t)
	mail := &mailStub{}
	svc := NewVerificationService(f.users, mail, VerificationConfig{Enabled: true})
	authSvc := NewAuthService(f.users, f.tokens, svc)
	ctx := context.Background()

	res, err := authSvc.Register(ctx, RegisterInput{Username: "resender", Email: "resend@example.com", Password: "password123"})
	require.NoError(t, err)
	first := pendingToken(t, f, res.User.ID)

	t.Run("unknown email", func(t *testing.T) {
		assert.True(t, models.IsCode(svc.Resend(ctx, "ghost@example.com"), models.CodeNotFound))
	})

	t.Run("send failure keeps rotated token", func(t *testing.T) {
		mail.err = errors.New("smtp down")
		err := svc.Resend(ctx, "RESEND@example.com")
		mail.err = nil
		require.Error(t, err)
		assert.True(t, models.IsCode(err, models.CodeUnavailable))

		rotated := pendingToken(t, f, res.User.ID)
		assert.NotEqual(t, first, rotated)
		assert.True(t, models.IsCode(svc.Verify(ctx, first), models.CodeValidation), "old token is dead")
	})

	t.Run("success then verified", func(t *testing.T) {
		require.NoError(t, svc.Resend(ctx, "resend@example.com"))
		last := mail.sent[len(mail.sent)-1]
		token := pendingToken(t, f, res.User.ID)
		assert.True(t, strings.Contains(last.Text, token))

		require.NoError(t, svc.Verify(ctx, token))
		assert.True(t, models.IsCode(svc.Resend(ctx, "resend@example.com"), models.CodeNotFound), "verified users cannot resend")
	})
}
