package cache

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/models"
)

const (
	UserKeyPrefix      = "user:%d"
	TermListKeyPrefix  = "terms:%s"
	RevokedTokenPrefix = "blacklist:%s"
)

const (
	UserTTL     = 5 * time.Minute
	TermListTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func TermListKey(kind models.TermKind) string {
	return fmt.Sprintf(TermListKeyPrefix, kind)
}

func RevokedTokenKey(tokenID string) string {
	return fmt.Sprintf(RevokedTokenPrefix, tokenID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateTerms(ctx context.Context, kind models.TermKind) {
	Invalidate(ctx, TermListKey(kind))
}
