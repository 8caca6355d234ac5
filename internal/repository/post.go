package repository

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows a feed read. Empty fields do not filter.
type PostFilter struct {
	Search      string
	AuthorID    uint
	CategoryIDs []uint
	TagIDs      []uint
	Sort        string
	Limit       int
	Offset      int
	ViewerID    uint
}

// PostChanges carries a partial post update. Nil term slices leave the join
// rows untouched; a non-nil empty slice clears them.
type PostChanges struct {
	Fields      map[string]any
	CategoryIDs *[]uint
	TagIDs      *[]uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, categoryIDs, tagIDs []uint) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	GetAuthorID(ctx context.Context, id uint) (uint, error)
	Exists(ctx context.Context, id uint) (bool, error)
	IncrementViews(ctx context.Context, id uint) error
	List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error)
	Similar(ctx context.Context, id uint, limit int) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, userID uint, viewerID uint) ([]*models.Post, error)
	LikedBy(ctx context.Context, userID uint) ([]*models.Post, error)
	CommentedBy(ctx context.Context, userID uint) ([]*models.Post, error)
	Update(ctx context.Context, id uint, changes PostChanges) error
	Delete(ctx context.Context, id uint) error
	ToggleLike(ctx context.Context, userID, postID uint) (likes int64, liked bool, err error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, categoryIDs, tagIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		if err := insertJoinRows(tx, "post_categories", "category_id", post.ID, categoryIDs); err != nil {
			return err
		}
		return insertJoinRows(tx, "post_tags", "tag_id", post.ID, tagIDs)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	db := r.db.WithContext(ctx)
	err := applyPostDetails(db, viewerID).
		Preload("User").
		Preload("Categories", orderByName).
		Preload("Tags", orderByName).
		First(&post, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}

	post.LikerIDs = []uint{}
	if err := db.Model(&models.Like{}).
		Where("post_id = ?", id).
		Order("created_at ASC, id ASC").
		Pluck("user_id", &post.LikerIDs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	post.CommentIDs = []uint{}
	if err := db.Model(&models.Comment{}).
		Where("post_id = ?", id).
		Order("created_at ASC, id ASC").
		Pluck("id", &post.CommentIDs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) GetAuthorID(ctx context.Context, id uint) (uint, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Select("id", "user_id").First(&post, id).Error; err != nil {
		return 0, notFoundOr(err, "Post", id)
	}
	return post.UserID, nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// IncrementViews bumps the counter in a single statement.
func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error) {
	timer := prometheus.NewTimer(observability.DatabaseQueryLatency.WithLabelValues("feed", "posts"))
	defer timer.ObserveDuration()

	db := r.db.WithContext(ctx)

	var total int64
	if err := applyFeedFilter(db.Model(&models.Post{}), filter).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	posts := []*models.Post{}
	if total == 0 || filter.Offset >= int(total) {
		return posts, total, nil
	}

	q := applyFeedFilter(applyPostDetails(db.Model(&models.Post{}), filter.ViewerID), filter).
		Preload("User").
		Preload("Categories", orderByName).
		Preload("Tags", orderByName).
		Order(FeedOrder(filter.Sort)).
		Order("posts.id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset)
	if err := q.Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// Similar returns the newest posts sharing at least one category or tag with the given post.
func (r *postRepository) Similar(ctx context.Context, id uint, limit int) ([]*models.Post, error) {
	exists, err := r.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", id)
	}

	posts := []*models.Post{}
	err = r.db.WithContext(ctx).
		Preload("User").
		Where("posts.id <> ?", id).
		Where(
			r.db.Where("posts.id IN (?)",
				r.db.Table("post_categories").Select("post_id").Where("category_id IN (?)",
					r.db.Table("post_categories").Select("category_id").Where("post_id = ?", id))).
				Or("posts.id IN (?)",
					r.db.Table("post_tags").Select("post_id").Where("tag_id IN (?)",
						r.db.Table("post_tags").Select("tag_id").Where("post_id = ?", id))),
		).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, userID uint, viewerID uint) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := applyPostDetails(r.db.WithContext(ctx).Model(&models.Post{}), viewerID).
		Where("posts.user_id = ?", userID).
		Order("posts.created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) LikedBy(ctx context.Context, userID uint) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := applyPostDetails(r.db.WithContext(ctx).Model(&models.Post{}), userID).
		Preload("User").
		Where("posts.id IN (?)", r.db.Model(&models.Like{}).Select("post_id").Where("user_id = ?", userID)).
		Order("posts.created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) CommentedBy(ctx context.Context, userID uint) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := applyPostDetails(r.db.WithContext(ctx).Model(&models.Post{}), userID).
		Preload("User").
		Where("posts.id IN (?)", r.db.Model(&models.Comment{}).Select("post_id").Where("user_id = ?", userID)).
		Order("posts.created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, id uint, changes PostChanges) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(changes.Fields) > 0 {
			res := tx.Model(&models.Post{}).Where("id = ?", id).Updates(changes.Fields)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return models.NewNotFoundError("Post", id)
			}
		}
		if changes.CategoryIDs != nil {
			if err := replaceJoinRows(tx, "post_categories", "category_id", id, *changes.CategoryIDs); err != nil {
				return err
			}
		}
		if changes.TagIDs != nil {
			if err := replaceJoinRows(tx, "post_tags", "tag_id", id, *changes.TagIDs); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapTxError(err)
}

// Delete removes the post together with its comments, likes and join rows.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return deletePostsCascade(tx, []uint{id})
	})
	return wrapTxError(err)
}

// ToggleLike flips the user's like inside one transaction: delete first, and
// insert only when nothing was deleted. The unique index keeps concurrent
// inserts from producing duplicates.
func (r *postRepository) ToggleLike(ctx context.Context, userID, postID uint) (int64, bool, error) {
	var (
		likes int64
		liked bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := models.Like{UserID: userID, PostID: postID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&likes).Error
	})
	if err != nil {
		return 0, false, models.NewInternalError(err)
	}
	action := "unlike"
	if liked {
		action = "like"
	}
	observability.LikeToggles.WithLabelValues(action).Inc()
	return likes, liked, nil
}

func applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) as comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) as likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) as liked", viewerID)
	}

	return db.Select(selectQuery + ", false as liked")
}

func applyFeedFilter(db *gorm.DB, filter PostFilter) *gorm.DB {
	if q := strings.TrimSpace(filter.Search); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		db = db.Where(`(LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.content) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if filter.AuthorID != 0 {
		db = db.Where("posts.user_id = ?", filter.AuthorID)
	}
	if len(filter.CategoryIDs) > 0 {
		db = db.Where("posts.id IN (SELECT post_id FROM post_categories WHERE category_id IN ?)", filter.CategoryIDs)
	}
	if len(filter.TagIDs) > 0 {
		db = db.Where("posts.id IN (SELECT post_id FROM post_tags WHERE tag_id IN ?)", filter.TagIDs)
	}
	return db
}

var sortColumns = map[string]string{
	"created_at": "posts.created_at",
	"createdat":  "posts.created_at",
	"updated_at": "posts.updated_at",
	"updatedat":  "posts.updated_at",
	"title":      "posts.title",
	"views":      "posts.views",
}

// FeedOrder turns a client sort key into a whitelisted ORDER BY clause.
// Unknown keys fall back to newest first.
func FeedOrder(sort string) string {
	const recent = "posts.created_at DESC"

	key := strings.ToLower(strings.TrimSpace(sort))
	switch key {
	case "", "new", "newest", "latest":
		return recent
	case "popular", "top":
		return "likes_count DESC, posts.created_at DESC"
	}

	dir := "ASC"
	switch key[0] {
	case '-':
		dir = "DESC"
		key = key[1:]
	case '+':
		key = key[1:]
	}
	col, ok := sortColumns[key]
	if !ok {
		return recent
	}
	return col + " " + dir
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderByName(db *gorm.DB) *gorm.DB {
	return db.Order("name ASC")
}

func insertJoinRows(tx *gorm.DB, table, column string, postID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, map[string]any{"post_id": postID, column: id})
	}
	return tx.Table(table).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func replaceJoinRows(tx *gorm.DB, table, column string, postID uint, ids []uint) error {
	if err := tx.Exec("DELETE FROM "+table+" WHERE post_id = ?", postID).Error; err != nil {
		return err
	}
	return insertJoinRows(tx, table, column, postID, ids)
}

// deletePostsCascade removes the posts and every row that points at them.
// It must run inside a transaction.
func deletePostsCascade(tx *gorm.DB, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	comments := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{})
	if comments.Error != nil {
		return comments.Error
	}
	observability.CascadeDeletes.WithLabelValues("post", "comments").Add(float64(comments.RowsAffected))

	likes := tx.Where("post_id IN ?", postIDs).Delete(&models.Like{})
	if likes.Error != nil {
		return likes.Error
	}
	observability.CascadeDeletes.WithLabelValues("post", "likes").Add(float64(likes.RowsAffected))

	for _, table := range []string{"post_categories", "post_tags"} {
		if err := tx.Exec("DELETE FROM "+table+" WHERE post_id IN ?", postIDs).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", postIDs).Delete(&models.Post{}).Error
}

// wrapTxError passes AppErrors raised inside a transaction through and wraps
// everything else as internal.
func wrapTxError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
