package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"inkwell/internal/authz"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

const (
	maxBioLen       = 500
	maxSocialURLLen = 255
)

type UserService struct {
	userRepo repository.UserRepository
	postRepo repository.PostRepository
	images   *ImageService
	guard    *authz.Guard
}

// UpdateProfileInput carries the fields a user may change about themselves.
// Role and verification state cannot be changed this way.
type UpdateProfileInput struct {
	UserID    uint
	Username  *string
	Bio       *string
	AvatarURL *string
	Socials   *models.Socials
}

// Dashboard groups the posts a user wrote, liked and commented on.
type Dashboard struct {
	MyPosts        []*models.Post `json:"my_posts"`
	LikedPosts     []*models.Post `json:"liked_posts"`
	CommentedPosts []*models.Post `json:"commented_posts"`
}

func NewUserService(userRepo repository.UserRepository, postRepo repository.PostRepository, images *ImageService, guard *authz.Guard) *UserService {
	return &UserService{userRepo: userRepo, postRepo: postRepo, images: images, guard: guard}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	fields := map[string]any{}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["username"] = username
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		fields["bio"] = bio
	}
	if in.AvatarURL != nil {
		fields["avatar_url"] = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Socials != nil {
		for col, v := range map[string]string{
			"social_twitter":  in.Socials.Twitter,
			"social_github":   in.Socials.Github,
			"social_linkedin": in.Socials.Linkedin,
			"social_website":  in.Socials.Website,
		} {
			v = strings.TrimSpace(v)
			if len(v) > maxSocialURLLen {
				return nil, models.NewValidationError("Social link too long (max 255 characters)")
			}
			fields[col] = v
		}
	}

	if err := s.userRepo.UpdateProfile(ctx, in.UserID, fields); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, in.UserID)
}

// SetAvatar stores a normalised copy of the upload and points the profile at
// it. The previous local avatar file is removed.
func (s *UserService) SetAvatar(ctx context.Context, in AvatarInput) (*models.User, error) {
	url, err := s.images.SaveAvatar(ctx, in)
	if err != nil {
		return nil, err
	}
	previous, err := s.userRepo.SetAvatarURL(ctx, in.UserID, url)
	if err != nil {
		s.images.RemoveAvatar(url)
		return nil, err
	}
	if previous != "" && previous != url {
		s.images.RemoveAvatar(previous)
	}
	return s.userRepo.GetByID(ctx, in.UserID)
}

func (s *UserService) Dashboard(ctx context.Context, userID uint) (*Dashboard, error) {
	mine, err := s.postRepo.ListByAuthor(ctx, userID, userID)
	if err != nil {
		return nil, err
	}
	liked, err := s.postRepo.LikedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	commented, err := s.postRepo.CommentedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{MyPosts: mine, LikedPosts: liked, CommentedPosts: commented}, nil
}

// Delete removes a user account and everything it authored. The account owner
// and admins may do this.
func (s *UserService) Delete(ctx context.Context, actorID, targetID uint) error {
	target := authz.Resource{Kind: "User", ID: targetID, Owner: func(ctx context.Context) (uint, error) {
		if _, err := s.userRepo.GetRole(ctx, targetID); err != nil {
			return 0, err
		}
		return targetID, nil
	}}
	if err := s.guard.RequireOwnerOrAdmin(ctx, actorID, target); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, targetID); err != nil {
		return err
	}
	if s.images != nil && user.AvatarURL != "" {
		s.images.RemoveAvatar(user.AvatarURL)
	}
	middleware.Logger.InfoContext(ctx, "user deleted", "user_id", targetID, "actor_id", actorID)
	return nil
}
