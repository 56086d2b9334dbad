package server

import (
	"fmt"
	"time"

	"atelier/internal/middleware"
	"atelier/internal/models"
	"atelier/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const viewerCookie = "atelier_viewer"

// viewerKey resolves a stable dedup identity for the request: authenticated
// users key by user ID, anonymous readers by a long-lived random cookie. The
// cookie is minted on first sight so repeat anonymous views dedup too.
func (s *Server) viewerKey(c *fiber.Ctx, userID uint) string {
	if userID != 0 {
		return fmt.Sprintf("u:%d", userID)
	}
	if v := c.Cookies(viewerCookie); v != "" {
		return "a:" + v
	}
	v := uuid.New().String()
	c.Cookie(&fiber.Cookie{
		Name:     viewerCookie,
		Value:    v,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return "a:" + v
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var input service.CreatePostInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CreatePost(c.Context(), currentUserID(c), input)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	sort := c.Query("sort", "new")

	posts, err := s.postService.ListPosts(c.Context(), p.Limit, p.Offset, currentUserID(c), sort)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"posts":  posts,
		"limit":  p.Limit,
		"offset": p.Offset,
	})
}

// GetPost handles GET /api/posts/:id. A successful read records a deduped
// view; the response carries the pre-view count, the increment lands for
// subsequent reads.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := currentUserID(c)

	post, err := s.postService.GetPost(c.Context(), id, userID)
	if err != nil {
		return fail(c, err)
	}

	viewer := s.viewerKey(c, userID)
	isOwner := userID != 0 && post.UserID == userID
	if err := s.viewTracker.RecordView(c.Context(), models.KindPost, id, viewer, isOwner); err != nil {
		// A failed view write is not worth failing the read for.
		middleware.Logger.WarnContext(c.UserContext(), "record view failed", "post_id", id, "error", err)
	}

	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var input service.UpdatePostInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.UpdatePost(c.Context(), currentUserID(c), id, input)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.Context(), currentUserID(c), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AttachTag handles POST /api/posts/:id/tags/:tagId
func (s *Server) AttachTag(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	tagID, err := s.parseID(c, "tagId")
	if err != nil {
		return nil
	}

	if err := s.postService.AttachTag(c.Context(), currentUserID(c), id, tagID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DetachTag handles DELETE /api/posts/:id/tags/:tagId
func (s *Server) DetachTag(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	tagID, err := s.parseID(c, "tagId")
	if err != nil {
		return nil
	}

	if err := s.postService.DetachTag(c.Context(), currentUserID(c), id, tagID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
