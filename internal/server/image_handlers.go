package server

import (
	"io"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadAvatar handles PATCH /users/me/avatar with a multipart "avatar" file.
// @Summary Upload avatar
// @Description Accepts png, jpeg, gif or webp. The stored copy is resized and re-encoded.
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Image"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/avatar [patch]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("avatar")
	if err != nil {
		return respondError(c, models.NewValidationError("No file uploaded"))
	}
	if file.Size > s.config.MaxAvatarBytes {
		return respondError(c, models.NewValidationError("Avatar is too large"))
	}

	src, err := file.Open()
	if err != nil {
		return respondError(c, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(io.LimitReader(src, s.config.MaxAvatarBytes+1))
	if err != nil {
		return respondError(c, models.NewValidationError("Unable to read uploaded file"))
	}

	user, err := s.userService.SetAvatar(c.UserContext(), service.AvatarInput{
		UserID:      currentUserID(c),
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
