package repository

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	// GetInPost loads a comment only if it belongs to the post.
	GetInPost(ctx context.Context, postID, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	UpdateText(ctx context.Context, id uint, text string) error
	// DeleteTree removes the comment and every reply below it, returning the number of rows removed.
	DeleteTree(ctx context.Context, id uint) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetInPost(ctx context.Context, postID, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		First(&comment, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

// ListByPost returns the post's comments oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) UpdateText(ctx context.Context, id uint, text string) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("text", text)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) DeleteTree(ctx context.Context, id uint) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteCommentSubtrees(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundError("Comment", id)
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, wrapTxError(err)
	}
	observability.CascadeDeletes.WithLabelValues("comment", "comments").Add(float64(removed - 1))
	return removed, nil
}

// deleteCommentSubtrees deletes the comments matching the condition along with
// all of their descendants.
func deleteCommentSubtrees(tx *gorm.DB, cond string, args ...any) (int64, error) {
	res := tx.Exec(`WITH RECURSIVE subtree(id) AS (
		SELECT id FROM comments WHERE `+cond+`
		UNION
		SELECT c.id FROM comments c JOIN subtree s ON c.parent_id = s.id
	)
	DELETE FROM comments WHERE id IN (SELECT id FROM subtree)`, args...)
	return res.RowsAffected, res.Error
}
