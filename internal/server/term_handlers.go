package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

type termRequest struct {
	Name string `json:"name"`
}

// ListTerms handles GET /categories and GET /tags, sorted by name.
func (s *Server) ListTerms(kind models.TermKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		terms, err := s.taxonomy.List(c.UserContext(), kind)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(terms)
	}
}

func (s *Server) GetTerm(kind models.TermKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		term, err := s.taxonomy.Get(c.UserContext(), kind, id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(term)
	}
}

// CreateTerm handles POST /categories and POST /tags. Admin only.
func (s *Server) CreateTerm(kind models.TermKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req termRequest
		if err := parseBody(c, &req); err != nil {
			return nil
		}
		term, err := s.taxonomy.Create(c.UserContext(), currentUserID(c), kind, req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(term)
	}
}

// UpdateTerm renames a term and recomputes its slug. Admin only.
func (s *Server) UpdateTerm(kind models.TermKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		var req termRequest
		if err := parseBody(c, &req); err != nil {
			return nil
		}
		term, err := s.taxonomy.Update(c.UserContext(), currentUserID(c), kind, id, req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(term)
	}
}

// DeleteTerm removes a term and detaches it from posts. Admin only.
func (s *Server) DeleteTerm(kind models.TermKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		if err := s.taxonomy.Delete(c.UserContext(), currentUserID(c), kind, id); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
