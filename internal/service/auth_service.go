package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Registration outcome messages.
const (
	MsgRegisteredVerify     = "registered; check your email to verify your account"
	MsgRegisteredNoVerify   = "registered; email verification is disabled"
	MsgRegisteredMailFailed = "registered but verification email could not be sent; use resend"
)

// AuthService handles sign-up, sign-in and sign-out.
type AuthService struct {
	users        repository.UserRepository
	tokens       *auth.TokenService
	verification *VerificationService
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type RegisterResult struct {
	User    *models.User
	Message string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, verification *VerificationService) *AuthService {
	return &AuthService{users: users, tokens: tokens, verification: verification}
}

// Register validates input, stores the user and sends the verification mail.
// A failed mail does not undo the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	ctx, end := observability.StartSpan(ctx, "auth.register")
	res, err := s.register(ctx, in)
	end(err)
	return res, err
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, models.NewValidationError("username, email and password are required")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	email, err := validation.NormalizeEmail(in.Email)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     models.RoleUser,
	}
	if err := s.verification.Begin(ctx, user); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	label := "disabled"
	msg := MsgRegisteredNoVerify
	if s.verification.Enabled() {
		label = "required"
		msg = MsgRegisteredVerify
		if err := s.verification.Deliver(ctx, user); err != nil {
			msg = MsgRegisteredMailFailed
		}
	}
	observability.Registrations.WithLabelValues(label).Inc()
	middleware.Logger.InfoContext(ctx, "user registered", "user_id", user.ID, "verification", label)

	return &RegisterResult{User: user, Message: msg}, nil
}

// Login exchanges credentials for an access token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, end := observability.StartSpan(ctx, "auth.login")
	res, err := s.login(ctx, email, password)
	end(err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.NewValidationError("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.Password, password) {
		observability.AuthFailures.WithLabelValues("credentials").Inc()
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

// Logout revokes the token id until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	ctx, end := observability.StartSpan(ctx, "auth.logout",
		attribute.String("user.id", strconv.FormatUint(uint64(claims.UserID), 10)))
	ttl := time.Until(claims.ExpiresAt)
	err := cache.Revoke(ctx, claims.TokenID, ttl)
	end(err)
	if err != nil {
		return models.NewUnavailableError("logout is unavailable, try again later", err)
	}
	return nil
}
