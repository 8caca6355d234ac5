package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformedToken covers a missing or non-Bearer header and unparsable tokens.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidSignature covers bad signatures, foreign algorithms and wrong issuer or audience.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired is returned once exp has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Keys older clients put the user id under, checked in order after "sub".
var legacySubjectKeys = []string{"id", "_id", "userId"}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Claims is the verified identity carried by an access token.
type Claims struct {
	UserID    uint
	TokenID   string
	ExpiresAt time.Time
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenService creates a token service. The secret must be non-empty.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue signs a token whose subject is userID.
func (s *TokenService) Issue(userID uint) (string, Claims, error) {
	now := s.now()
	claims := Claims{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
	}
	mapClaims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": claims.ExpiresAt.Unix(),
		"jti": claims.TokenID,
	}
	if s.issuer != "" {
		mapClaims["iss"] = s.issuer
	}
	if s.audience != "" {
		mapClaims["aud"] = s.audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature and expiry and extracts the subject.
// Tokens from older payload shapes without iss/aud are accepted.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMalformedToken
	}

	mapClaims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, mapClaims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	default:
		return nil, ErrInvalidSignature
	}

	if iss, ok := mapClaims["iss"].(string); ok && s.issuer != "" && iss != s.issuer {
		return nil, ErrInvalidSignature
	}
	if _, present := mapClaims["aud"]; present && s.audience != "" {
		aud, _ := mapClaims.GetAudience()
		if !containsString(aud, s.audience) {
			return nil, ErrInvalidSignature
		}
	}

	userID, ok := subjectFrom(mapClaims)
	if !ok {
		return nil, ErrMalformedToken
	}

	claims := &Claims{UserID: userID}
	if jti, ok := mapClaims["jti"].(string); ok {
		claims.TokenID = jti
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>" value.
func ParseBearer(header string) (string, error) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", ErrMalformedToken
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMalformedToken
	}
	return token, nil
}

func subjectFrom(claims jwt.MapClaims) (uint, bool) {
	if id, ok := parseSubject(claims["sub"]); ok {
		return id, true
	}
	for _, key := range legacySubjectKeys {
		if id, ok := parseSubject(claims[key]); ok {
			return id, true
		}
	}
	if user, ok := claims["user"].(map[string]any); ok {
		for _, key := range []string{"id", "_id"} {
			if id, ok := parseSubject(user[key]); ok {
				return id, true
			}
		}
	}
	return 0, false
}

func parseSubject(v any) (uint, bool) {
	switch val := v.(type) {
	case string:
		id, err := strconv.ParseUint(strings.TrimSpace(val), 10, 32)
		if err != nil || id == 0 {
			return 0, false
		}
		return uint(id), true
	case float64:
		if val < 1 || val != float64(uint32(val)) {
			return 0, false
		}
		return uint(val), true
	default:
		return 0, false
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
