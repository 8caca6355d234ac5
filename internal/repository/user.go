package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetRole(ctx context.Context, id uint) (string, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id uint, fields map[string]any) error
	SetAvatarURL(ctx context.Context, id uint, url string) (previous string, err error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id uint) error

	// RotateVerificationToken stores a new token for an unverified user.
	// It reports false when the user is missing or already verified.
	RotateVerificationToken(ctx context.Context, id uint, token string, expires time.Time) (bool, error)
	// ConsumeVerificationToken marks the owner of a live token verified and clears
	// the token in one statement. It reports false when no such token exists.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetRole reads the role straight from the database, bypassing the cache.
func (r *userRepository) GetRole(ctx context.Context, id uint) (string, error) {
	var role string
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("role", &role).Error
	if err != nil {
		return "", models.NewInternalError(err)
	}
	if role == "" {
		return "", models.NewNotFoundError("User", id)
	}
	return role, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return userConflictOr(err)
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return userConflictOr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) SetAvatarURL(ctx context.Context, id uint, url string) (string, error) {
	var previous string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "avatar_url").First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		previous = user.AvatarURL
		if err := tx.Model(&user).Update("avatar_url", url).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	cache.InvalidateUser(ctx, id)
	return previous, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// Delete removes the user and everything that only exists in reference to
// them: likes, comments (with their replies) and posts (with their cascades).
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("User", id)
		}

		likes := tx.Where("user_id = ?", id).Delete(&models.Like{})
		if likes.Error != nil {
			return likes.Error
		}
		observability.CascadeDeletes.WithLabelValues("user", "likes").Add(float64(likes.RowsAffected))

		comments, err := deleteCommentSubtrees(tx, "user_id = ?", id)
		if err != nil {
			return err
		}
		observability.CascadeDeletes.WithLabelValues("user", "comments").Add(float64(comments))

		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("user_id = ?", id).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if err := deletePostsCascade(tx, postIDs); err != nil {
			return err
		}
		observability.CascadeDeletes.WithLabelValues("user", "posts").Add(float64(len(postIDs)))

		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		return wrapTxError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) RotateVerificationToken(ctx context.Context, id uint, token string, expires time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND email_verified = ?", id, false).
		Updates(map[string]any{
			"verification_token":   token,
			"verification_expires": expires,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateUser(ctx, id)
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepository) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (bool, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("verification_token = ? AND verification_expires > ? AND email_verified = ?", token, now, false).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res := tx.Model(&models.User{}).
			Where("id IN ? AND verification_token = ? AND verification_expires > ? AND email_verified = ?", ids, token, now, false).
			Updates(map[string]any{
				"email_verified":       true,
				"verification_token":   nil,
				"verification_expires": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			ids = nil
		}
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	for _, id := range ids {
		cache.InvalidateUser(ctx, id)
	}
	return len(ids) > 0, nil
}

func userConflictOr(err error) error {
	if !isUniqueConstraintError(err) {
		return models.NewInternalError(err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "email"):
		return models.NewConflictError("Email is already registered")
	case strings.Contains(msg, "username"):
		return models.NewConflictError("Username is already taken")
	default:
		return models.NewConflictError("User already exists")
	}
}
