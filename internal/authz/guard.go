// Package authz decides who may act on what. Its checks are pure reads: they
// never mutate state, and every denial is an AppError the HTTP layer can
// render directly.
package authz

import (
	"context"
	"errors"

	"inkwell/internal/auth"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
)

// TokenVerifier validates a raw access token.
type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// RoleLookup reads a user's current role from storage.
type RoleLookup interface {
	GetRole(ctx context.Context, userID uint) (string, error)
}

// RevocationChecker reports whether a token id has been revoked (logged out).
type RevocationChecker func(ctx context.Context, tokenID string) (bool, error)

// OwnerLookup fetches the owning user id of one record.
type OwnerLookup func(ctx context.Context) (ownerID uint, err error)

// Resource names an owned record. Kind and ID build the NOT_FOUND error that
// both a missing record and a non-owner receive.
type Resource struct {
	Kind  string
	ID    uint
	Owner OwnerLookup
}

// Guard answers authentication, role and ownership questions.
type Guard struct {
	tokens  TokenVerifier
	roles   RoleLookup
	revoked RevocationChecker
}

// NewGuard builds a Guard. A nil revoked checker treats every token as live.
func NewGuard(tokens TokenVerifier, roles RoleLookup, revoked RevocationChecker) *Guard {
	if revoked == nil {
		revoked = func(context.Context, string) (bool, error) { return false, nil }
	}
	return &Guard{tokens: tokens, roles: roles, revoked: revoked}
}

var errUnauthorized = models.NewUnauthorizedError("Unauthorized")

// Authenticate resolves an Authorization header to verified claims whose
// subject still has an account.
func (g *Guard) Authenticate(ctx context.Context, header string) (*auth.Claims, error) {
	raw, err := auth.ParseBearer(header)
	if err != nil {
		observability.AuthFailures.WithLabelValues("malformed").Inc()
		return nil, errUnauthorized
	}
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		observability.AuthFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, errUnauthorized
	}

	revoked, err := g.revoked(ctx, claims.TokenID)
	if err != nil {
		// Redis is down: tokens stay valid until they expire.
		middleware.Logger.WarnContext(ctx, "revocation check failed", "error", err)
	} else if revoked {
		observability.AuthFailures.WithLabelValues("revoked").Inc()
		return nil, errUnauthorized
	}

	// Tokens of deleted accounts die with the account.
	if _, err := g.roles.GetRole(ctx, claims.UserID); err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			observability.AuthFailures.WithLabelValues("unknown_subject").Inc()
			return nil, errUnauthorized
		}
		return nil, err
	}
	return claims, nil
}

// RequireRole checks the user's stored role. Admins satisfy any role.
func (g *Guard) RequireRole(ctx context.Context, userID uint, role string) error {
	current, err := g.roles.GetRole(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewForbiddenError("Forbidden")
		}
		return err
	}
	if current == models.RoleAdmin || current == role {
		return nil
	}
	return models.NewForbiddenError("Forbidden")
}

// RequireOwner allows only the record's owner.
func (g *Guard) RequireOwner(ctx context.Context, userID uint, res Resource) error {
	return g.authorize(ctx, userID, res, false)
}

// RequireOwnerOrAdmin allows the record's owner or any admin.
func (g *Guard) RequireOwnerOrAdmin(ctx context.Context, userID uint, res Resource) error {
	return g.authorize(ctx, userID, res, true)
}

func (g *Guard) authorize(ctx context.Context, userID uint, res Resource, adminBypass bool) error {
	notFound := models.NewNotFoundError(res.Kind, res.ID)

	ownerID, err := res.Owner(ctx)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return notFound
		}
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeInternal {
			return err
		}
		return models.NewInternalError(err)
	}
	if userID != 0 && ownerID == userID {
		return nil
	}

	if adminBypass && userID != 0 {
		role, err := g.roles.GetRole(ctx, userID)
		if err != nil && !models.IsCode(err, models.CodeNotFound) {
			return err
		}
		if role == models.RoleAdmin {
			return nil
		}
	}
	return notFound
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrMalformedToken):
		return "malformed"
	default:
		return "signature"
	}
}
