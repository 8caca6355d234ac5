package service

import (
	"context"

	"inkwell/internal/authz"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	guard       *authz.Guard
}

type CreateCommentInput struct {
	PostID   uint
	UserID   uint
	Text     string
	ParentID *uint
}

type UpdateCommentInput struct {
	PostID    uint
	CommentID uint
	UserID    uint
	Text      string
}

type DeleteCommentInput struct {
	PostID    uint
	CommentID uint
	UserID    uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	guard *authz.Guard,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		guard:       guard,
	}
}

func (s *CommentService) ownedComment(postID, id uint) authz.Resource {
	return authz.Resource{Kind: "Comment", ID: id, Owner: func(ctx context.Context) (uint, error) {
		comment, err := s.commentRepo.GetInPost(ctx, postID, id)
		if err != nil {
			return 0, err
		}
		return comment.UserID, nil
	}}
}

func (s *CommentService) requirePost(ctx context.Context, postID uint) error {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return err
	}
	if !exists {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}

// Create adds a comment, or a reply when ParentID names a comment on the same post.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	text, err := validation.ValidateCommentText(in.Text)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.requirePost(ctx, in.PostID); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		// A parent on another post reads as missing.
		if _, err := s.commentRepo.GetInPost(ctx, in.PostID, *in.ParentID); err != nil {
			return nil, err
		}
	}

	comment := &models.Comment{
		PostID:   in.PostID,
		UserID:   in.UserID,
		ParentID: in.ParentID,
		Text:     text,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetInPost(ctx, in.PostID, comment.ID)
}

func (s *CommentService) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

// Update edits the text. Only the author may edit.
func (s *CommentService) Update(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	if err := s.guard.RequireOwner(ctx, in.UserID, s.ownedComment(in.PostID, in.CommentID)); err != nil {
		return nil, err
	}
	text, err := validation.ValidateCommentText(in.Text)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.commentRepo.UpdateText(ctx, in.CommentID, text); err != nil {
		return nil, err
	}
	return s.commentRepo.GetInPost(ctx, in.PostID, in.CommentID)
}

// Delete removes the comment with all replies beneath it. Only the author may delete.
func (s *CommentService) Delete(ctx context.Context, in DeleteCommentInput) error {
	if err := s.guard.RequireOwner(ctx, in.UserID, s.ownedComment(in.PostID, in.CommentID)); err != nil {
		return err
	}
	_, err := s.commentRepo.DeleteTree(ctx, in.CommentID)
	return err
}
