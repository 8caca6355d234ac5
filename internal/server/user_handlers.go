package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Username  *string         `json:"username"`
	Bio       *string         `json:"bio"`
	AvatarURL *string         `json:"avatar_url"`
	Socials   *models.Socials `json:"socials"`
}

// ListUsers handles GET /users
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PublicProfile
// @Router /users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	users, err := s.userService.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	out := make([]models.PublicProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return c.JSON(out)
}

// GetUser handles GET /users/:id
// @Summary Get user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.PublicProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user.Public())
}

// GetMe handles GET /users/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.Get(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMe handles PATCH /users/me. Role and verification state cannot be changed here.
// @Summary Update my profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body updateProfileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me [patch]
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:    currentUserID(c),
		Username:  req.Username,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
		Socials:   req.Socials,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetDashboard handles GET /users/me/dashboard
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	dash, err := s.userService.Dashboard(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dash)
}

// DeleteUser handles DELETE /users/:id. The account owner or an admin may delete.
// @Summary Delete user
// @Description Removes the account with its posts, comments and likes.
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
