package server

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// termList accepts categories and tags as a JSON array of names or ids, or as
// one comma-separated string.
type termList []string

func (l *termList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = service.SplitTerms([]string{s})
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return err
		}
		out = append(out, n.String())
	}
	*l = out
	return nil
}

func (l *termList) ptr() *[]string {
	if l == nil {
		return nil
	}
	s := []string(*l)
	if s == nil {
		s = []string{}
	}
	return &s
}

type createPostRequest struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	ImageURL   string   `json:"image_url"`
	Categories termList `json:"categories"`
	Tags       termList `json:"tags"`
}

type updatePostRequest struct {
	Title      *string   `json:"title"`
	Content    *string   `json:"content"`
	ImageURL   *string   `json:"image_url"`
	Categories *termList `json:"categories"`
	Tags       *termList `json:"tags"`
}

// ListPosts handles GET /posts
// @Summary List posts
// @Description Paged feed with search, author, category and tag filters.
// @Tags posts
// @Produce json
// @Param search query string false "Title or content substring"
// @Param author query int false "Author id"
// @Param categories query string false "Comma-separated category names, slugs or ids"
// @Param tags query string false "Comma-separated tag names, slugs or ids"
// @Param sort query string false "new, popular, or a field with +/- prefix"
// @Param page query int false "Page, from 1"
// @Param limit query int false "Page size"
// @Success 200 {object} service.FeedPage
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	q := service.FeedQuery{
		Search:     strings.TrimSpace(c.Query("search")),
		Categories: service.SplitTerms([]string{c.Query("categories")}),
		Tags:       service.SplitTerms([]string{c.Query("tags")}),
		Sort:       c.Query("sort"),
		Page:       c.QueryInt("page", service.DefaultPage),
		Limit:      c.QueryInt("limit", service.DefaultPageSize),
		ViewerID:   s.optionalUserID(c),
	}
	if author := strings.TrimSpace(c.Query("author")); author != "" {
		id, err := strconv.ParseUint(author, 10, 64)
		if err != nil || id == 0 {
			return respondError(c, models.NewValidationError("Invalid author ID"))
		}
		q.AuthorID = uint(id)
	}

	page, err := s.postService.List(c.UserContext(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// CreatePost handles POST /posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		UserID:     currentUserID(c),
		Title:      req.Title,
		Content:    req.Content,
		ImageURL:   req.ImageURL,
		Categories: req.Categories,
		Tags:       req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /posts/:id. Every read counts as a view.
// @Summary Get post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Get(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// SimilarPosts handles GET /posts/:id/similar
func (s *Server) SimilarPosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if !s.featureFlags.Enabled(featureflags.SimilarPosts, s.optionalUserID(c)) {
		return respondError(c, &models.AppError{Code: models.CodeNotFound, Message: "Not found"})
	}

	posts, err := s.postService.Similar(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// UpdatePost handles PATCH and PUT /posts/:id. Absent fields are left alone.
// @Summary Update post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body updatePostRequest true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Update(c.UserContext(), service.UpdatePostInput{
		ID:         id,
		UserID:     currentUserID(c),
		Title:      req.Title,
		Content:    req.Content,
		ImageURL:   req.ImageURL,
		Categories: req.Categories.ptr(),
		Tags:       req.Tags.ptr(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /posts/:id
// @Summary Delete post
// @Description Removes the post with its comments and likes.
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.Delete(c.UserContext(), service.DeletePostInput{ID: id, UserID: currentUserID(c)}); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /posts/:id/like. A second call removes the like.
// @Summary Toggle like
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.LikeResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.postService.ToggleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
