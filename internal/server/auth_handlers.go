package server

import (
	"time"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register handles POST /auth/register
// @Summary Register
// @Description Create an account. When email verification is on, a verification link is mailed.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body registerRequest true "Registration"
// @Success 201 {object} object{message=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": res.Message,
		"user":    res.User,
	})
}

// Login handles POST /auth/login
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} loginResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(loginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.User})
}

// Logout handles POST /auth/logout
// @Summary Logout
// @Description Revokes the presented token until it expires.
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} messageResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims := currentClaims(c)
	if claims == nil {
		return respondError(c, models.NewUnauthorizedError("Unauthorized"))
	}
	if err := s.authService.Logout(c.UserContext(), claims); err != nil {
		return respondError(c, err)
	}
	return c.JSON(messageResponse{Message: "Logged out"})
}

// VerifyEmail handles POST /auth/verify-email
// @Summary Verify email
// @Tags auth
// @Accept json
// @Param request body object{token=string} true "Verification token"
// @Success 200 {object} messageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/verify-email [post]
func (s *Server) VerifyEmail(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.verification.Verify(c.UserContext(), req.Token); err != nil {
		return respondError(c, err)
	}
	return c.JSON(messageResponse{Message: "Email verified"})
}

// ResendVerification handles POST /auth/resend-verification
func (s *Server) ResendVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.verification.Resend(c.UserContext(), req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(messageResponse{Message: "Verification email sent"})
}
