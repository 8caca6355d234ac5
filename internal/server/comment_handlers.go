package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Text     string `json:"text"`
	ParentID *uint  `json:"parent_id"`
}

// ListComments handles GET /posts/:id/comments, oldest first.
// @Summary List comments
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListByPost(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /posts/:id/comments
// @Summary Create comment
// @Description A parent_id naming a comment on the same post makes this a reply.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body commentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	return s.createComment(c, service.CreateCommentInput{
		PostID:   postID,
		UserID:   currentUserID(c),
		Text:     req.Text,
		ParentID: req.ParentID,
	})
}

// CreateReply handles POST /posts/:id/comments/:commentId/replies
func (s *Server) CreateReply(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	parentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	return s.createComment(c, service.CreateCommentInput{
		PostID:   postID,
		UserID:   currentUserID(c),
		Text:     req.Text,
		ParentID: &parentID,
	})
}

func (s *Server) createComment(c *fiber.Ctx, in service.CreateCommentInput) error {
	comment, err := s.commentService.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT and PATCH /posts/:id/comments/:commentId
// @Summary Edit comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Param request body object{text=string} true "New text"
// @Success 200 {object} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.Update(c.UserContext(), service.UpdateCommentInput{
		PostID:    postID,
		CommentID: commentID,
		UserID:    currentUserID(c),
		Text:      req.Text,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /posts/:id/comments/:commentId. Replies go with it.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	err = s.commentService.Delete(c.UserContext(), service.DeleteCommentInput{
		PostID:    postID,
		CommentID: commentID,
		UserID:    currentUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
