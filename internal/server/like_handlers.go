package server

import (
	"atelier/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ToggleLike returns the handler for POST /:id/like routes. The same toggle
// endpoint serves every likeable kind; the route binds which one.
func (s *Server) ToggleLike(kind models.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		targetID, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}

		result, err := s.likeService.Toggle(c.Context(), currentUserID(c), kind, targetID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(result)
	}
}
