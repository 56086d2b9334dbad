package server

import (
	"atelier/internal/middleware"
	"atelier/internal/models"
	"atelier/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPortfolioItems handles GET /api/portfolio
func (s *Server) GetPortfolioItems(c *fiber.Ctx) error {
	items, err := s.portfolioService.List(c.Context(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": items})
}

// GetPortfolioItem handles GET /api/portfolio/:id. Like post reads, a
// successful fetch records a deduped view.
func (s *Server) GetPortfolioItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := currentUserID(c)

	item, err := s.portfolioService.Get(c.Context(), id, userID)
	if err != nil {
		return fail(c, err)
	}

	viewer := s.viewerKey(c, userID)
	isOwner := userID != 0 && item.UserID == userID
	if err := s.viewTracker.RecordView(c.Context(), models.KindPortfolio, id, viewer, isOwner); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "record view failed", "portfolio_id", id, "error", err)
	}

	return c.JSON(item)
}

// CreatePortfolioItem handles POST /api/portfolio
func (s *Server) CreatePortfolioItem(c *fiber.Ctx) error {
	var input service.PortfolioInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	item, err := s.portfolioService.Create(c.Context(), currentUserID(c), input)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// UpdatePortfolioItem handles PUT /api/portfolio/:id
func (s *Server) UpdatePortfolioItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var input service.PortfolioInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	item, err := s.portfolioService.Update(c.Context(), currentUserID(c), id, input)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(item)
}

// DeletePortfolioItem handles DELETE /api/portfolio/:id
func (s *Server) DeletePortfolioItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.portfolioService.Delete(c.Context(), currentUserID(c), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
