package server

import (
	"atelier/internal/models"
	"atelier/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCategories handles GET /api/categories
func (s *Server) GetCategories(c *fiber.Ctx) error {
	categories, err := s.taxonomyService.ListCategories(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// GetCategoryBySlug handles GET /api/categories/:slug
func (s *Server) GetCategoryBySlug(c *fiber.Ctx) error {
	category, err := s.taxonomyService.GetCategoryBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(category)
}

// GetCategoryPosts handles GET /api/categories/:slug/posts
func (s *Server) GetCategoryPosts(c *fiber.Ctx) error {
	category, err := s.taxonomyService.GetCategoryBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return fail(c, err)
	}
	p := parsePagination(c, 20)

	posts, err := s.postService.ListPostsByCategory(c.Context(), category.ID, p.Limit, p.Offset, currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"category": category,
		"posts":    posts,
		"limit":    p.Limit,
		"offset":   p.Offset,
	})
}

// CreateCategory handles POST /api/admin/categories
func (s *Server) CreateCategory(c *fiber.Ctx) error {
	var input service.TaxonomyInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	category, err := s.taxonomyService.CreateCategory(c.Context(), currentUserID(c), input)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// GetTags handles GET /api/tags
func (s *Server) GetTags(c *fiber.Ctx) error {
	tags, err := s.taxonomyService.ListTags(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"tags": tags})
}

// CreateTag handles POST /api/admin/tags
func (s *Server) CreateTag(c *fiber.Ctx) error {
	var input service.TaxonomyInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	tag, err := s.taxonomyService.CreateTag(c.Context(), currentUserID(c), input)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}
