package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"inkwell/internal/mailer"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// DefaultVerificationTTL is how long a verification link stays valid.
const DefaultVerificationTTL = 24 * time.Hour

// VerificationConfig is resolved once at startup.
type VerificationConfig struct {
	Enabled   bool
	TTL       time.Duration
	ClientURL string
}

// VerificationService owns every change to a user's verification fields.
type VerificationService struct {
	users  repository.UserRepository
	sender mailer.Sender
	cfg    VerificationConfig
	now    func() time.Time
}

func NewVerificationService(users repository.UserRepository, sender mailer.Sender, cfg VerificationConfig) *VerificationService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultVerificationTTL
	}
	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	return &VerificationService{users: users, sender: sender, cfg: cfg, now: time.Now}
}

// Enabled reports whether new accounts must verify their email.
func (s *VerificationService) Enabled() bool { return s.cfg.Enabled }

// Begin prepares a user that is about to be inserted.
func (s *VerificationService) Begin(_ context.Context, user *models.User) error {
	if !s.cfg.Enabled {
		user.EmailVerified = true
		user.VerificationToken = nil
		user.VerificationExpires = nil
		return nil
	}
	token, err := newVerificationToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	expires := s.now().Add(s.cfg.TTL)
	user.EmailVerified = false
	user.VerificationToken = &token
	user.VerificationExpires = &expires
	return nil
}

// Deliver mails the stored token to the user. It does nothing when
// verification is disabled or the user has no pending token.
func (s *VerificationService) Deliver(ctx context.Context, user *models.User) error {
	if !s.cfg.Enabled || user.EmailVerified || user.VerificationToken == nil {
		return nil
	}
	ctx, end := observability.StartSpan(ctx, "verification.deliver")
	err := s.send(ctx, user.Email, user.Username, *user.VerificationToken)
	end(err)
	return err
}

// Verify consumes a token. Every failure reads the same so tokens cannot be probed.
func (s *VerificationService) Verify(ctx context.Context, token string) error {
	if !s.cfg.Enabled {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return models.NewValidationError("verification token is required")
	}
	ok, err := s.users.ConsumeVerificationToken(ctx, token, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return models.NewValidationError("invalid or expired verification token")
	}
	return nil
}

// Resend rotates the user's token and mails it again. A failed send leaves the
// rotated token in place; the previous link is already dead at that point.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	if !s.cfg.Enabled {
		return nil
	}
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return models.NewValidationError(err.Error())
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return &models.AppError{Code: models.CodeNotFound, Message: "user not found or already verified"}
	}

	token, err := newVerificationToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	rotated, err := s.users.RotateVerificationToken(ctx, user.ID, token, s.now().Add(s.cfg.TTL))
	if err != nil {
		return err
	}
	if !rotated {
		return &models.AppError{Code: models.CodeNotFound, Message: "user not found or already verified"}
	}

	if err := s.send(ctx, user.Email, user.Username, token); err != nil {
		return models.NewUnavailableError("verification email could not be sent, retry", err)
	}
	return nil
}

func (s *VerificationService) send(ctx context.Context, to, username, token string) error {
	link := s.cfg.ClientURL + "/verify-email?token=" + url.QueryEscape(token)
	msg, err := mailer.VerificationMessage(to, username, link, int(s.cfg.TTL.Hours()))
	if err != nil {
		observability.VerificationMails.WithLabelValues("error").Inc()
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		observability.VerificationMails.WithLabelValues("failed").Inc()
		middleware.Logger.WarnContext(ctx, "verification email failed", "error", err)
		return err
	}
	observability.VerificationMails.WithLabelValues("sent").Inc()
	return nil
}

func newVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
