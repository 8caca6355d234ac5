package service

import (
	"context"
	"strconv"

	"inkwell/internal/authz"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Feed paging bounds.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 50
	SimilarLimit    = 5
)

type PostService struct {
	postRepo repository.PostRepository
	terms    *TaxonomyService
	guard    *authz.Guard
	maxLimit int
}

type CreatePostInput struct {
	UserID     uint
	Title      string
	Content    string
	ImageURL   string
	Categories []string
	Tags       []string
}

// UpdatePostInput carries only the fields the caller supplied.
type UpdatePostInput struct {
	ID         uint
	UserID     uint
	Title      *string
	Content    *string
	ImageURL   *string
	Categories *[]string
	Tags       *[]string
}

type DeletePostInput struct {
	ID     uint
	UserID uint
}

// FeedQuery is a client feed request before defaults are applied.
type FeedQuery struct {
	Search     string
	AuthorID   uint
	Categories []string
	Tags       []string
	Sort       string
	Page       int
	Limit      int
	ViewerID   uint
}

// FeedPage is one page of the feed with the totals needed to page further.
type FeedPage struct {
	Items     []*models.Post `json:"items"`
	Total     int64          `json:"total"`
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
	PageCount int            `json:"page_count"`
}

type LikeResult struct {
	Likes int64 `json:"likes"`
	Liked bool  `json:"liked"`
}

// NewPostService builds the service. maxLimit caps the feed page size; values
// below 1 use MaxPageSize.
func NewPostService(postRepo repository.PostRepository, terms *TaxonomyService, guard *authz.Guard, maxLimit int) *PostService {
	if maxLimit < 1 {
		maxLimit = MaxPageSize
	}
	return &PostService{postRepo: postRepo, terms: terms, guard: guard, maxLimit: maxLimit}
}

func (s *PostService) ownedPost(id uint) authz.Resource {
	return authz.Resource{Kind: "Post", ID: id, Owner: func(ctx context.Context) (uint, error) {
		return s.postRepo.GetAuthorID(ctx, id)
	}}
}

// Create validates the post, resolves its terms and stores it.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, end := observability.StartSpan(ctx, "post.create")
	post, err := s.create(ctx, in)
	end(err)
	return post, err
}

func (s *PostService) create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title, err := validation.ValidatePostTitle(in.Title)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	content, err := validation.ValidatePostContent(in.Content)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	cats, err := s.terms.Resolve(ctx, models.KindCategory, in.Categories)
	if err != nil {
		return nil, err
	}
	tags, err := s.terms.Resolve(ctx, models.KindTag, in.Tags)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:    title,
		Content:  content,
		ImageURL: in.ImageURL,
		UserID:   in.UserID,
	}
	if err := s.postRepo.Create(ctx, post, cats.IDs, tags.IDs); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// Get counts a view and returns the post with its engagement details.
func (s *PostService) Get(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	if err := s.postRepo.IncrementViews(ctx, id); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, id, viewerID)
}

// Update changes the supplied fields. Only the author may update a post.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := s.guard.RequireOwner(ctx, in.UserID, s.ownedPost(in.ID)); err != nil {
		return nil, err
	}

	changes := repository.PostChanges{Fields: map[string]any{}}
	if in.Title != nil {
		title, err := validation.ValidatePostTitle(*in.Title)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		changes.Fields["title"] = title
	}
	if in.Content != nil {
		content, err := validation.ValidatePostContent(*in.Content)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		changes.Fields["content"] = content
	}
	if in.ImageURL != nil {
		changes.Fields["image_url"] = *in.ImageURL
	}
	if in.Categories != nil {
		res, err := s.terms.Resolve(ctx, models.KindCategory, *in.Categories)
		if err != nil {
			return nil, err
		}
		changes.CategoryIDs = &res.IDs
	}
	if in.Tags != nil {
		res, err := s.terms.Resolve(ctx, models.KindTag, *in.Tags)
		if err != nil {
			return nil, err
		}
		changes.TagIDs = &res.IDs
	}

	if err := s.postRepo.Update(ctx, in.ID, changes); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, in.ID, in.UserID)
}

// Delete removes the post and everything attached to it. Author only.
func (s *PostService) Delete(ctx context.Context, in DeletePostInput) error {
	if err := s.guard.RequireOwner(ctx, in.UserID, s.ownedPost(in.ID)); err != nil {
		return err
	}
	ctx, end := observability.StartSpan(ctx, "post.delete",
		attribute.String("post.id", strconv.FormatUint(uint64(in.ID), 10)))
	err := s.postRepo.Delete(ctx, in.ID)
	end(err)
	return err
}

// ToggleLike likes the post, or unlikes it when the user already did.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}
	likes, liked, err := s.postRepo.ToggleLike(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	return &LikeResult{Likes: likes, Liked: liked}, nil
}

// Similar lists recent posts that share a category or tag with the post.
func (s *PostService) Similar(ctx context.Context, id uint) ([]*models.Post, error) {
	return s.postRepo.Similar(ctx, id, SimilarLimit)
}

// List runs a feed query.
func (s *PostService) List(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	ctx, end := observability.StartSpan(ctx, "post.feed",
		attribute.String("feed.sort", q.Sort),
		attribute.Bool("feed.search", q.Search != ""))
	page, err := s.list(ctx, q)
	end(err)
	return page, err
}

func (s *PostService) list(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	page, limit := NormalizePaging(q.Page, q.Limit, s.maxLimit)
	result := &FeedPage{Items: []*models.Post{}, Page: page, Limit: limit}

	filter := repository.PostFilter{
		Search:   q.Search,
		AuthorID: q.AuthorID,
		Sort:     q.Sort,
		Limit:    limit,
		Offset:   (page - 1) * limit,
		ViewerID: q.ViewerID,
	}

	if len(q.Categories) > 0 {
		ids, err := s.terms.Lookup(ctx, models.KindCategory, q.Categories)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return result, nil
		}
		filter.CategoryIDs = ids
	}
	if len(q.Tags) > 0 {
		ids, err := s.terms.Lookup(ctx, models.KindTag, q.Tags)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return result, nil
		}
		filter.TagIDs = ids
	}

	items, total, err := s.postRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	result.Items = items
	result.Total = total
	result.PageCount = int((total + int64(limit) - 1) / int64(limit))
	return result, nil
}

// NormalizePaging applies the feed defaults: values below 1 reset to page 1
// and DefaultPageSize, and limit is capped at maxLimit.
func NormalizePaging(page, limit, maxLimit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
