package service

import (
	"context"
	"errors"
	"strings"

	"atelier/internal/models"
	"atelier/internal/repository"

	"gorm.io/gorm"
)

// PortfolioInput contains the data needed to create or update a portfolio item
type PortfolioInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// PortfolioService handles portfolio business logic
type PortfolioService struct {
	portfolios repository.PortfolioRepository
	isAdmin    func(ctx context.Context, userID uint) bool
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(portfolios repository.PortfolioRepository, isAdmin func(ctx context.Context, userID uint) bool) *PortfolioService {
	if isAdmin == nil {
		isAdmin = func(context.Context, uint) bool { return false }
	}
	return &PortfolioService{portfolios: portfolios, isAdmin: isAdmin}
}

func (s *PortfolioService) validate(input PortfolioInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return models.NewValidationError("title is required")
	}
	if len(input.Title) > 200 {
		return models.NewValidationError("title must be at most 200 characters")
	}
	return nil
}

// Create persists a new portfolio item for userID.
func (s *PortfolioService) Create(ctx context.Context, userID uint, input PortfolioInput) (*models.Portfolio, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("authentication required")
	}
	if err := s.validate(input); err != nil {
		return nil, err
	}
	item := &models.Portfolio{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Link:        strings.TrimSpace(input.Link),
		UserID:      userID,
	}
	if err := s.portfolios.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Get returns a portfolio item with the viewer's like state resolved.
func (s *PortfolioService) Get(ctx context.Context, id uint, viewerID uint) (*models.Portfolio, error) {
	item, err := s.portfolios.GetByID(ctx, id, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("portfolio item", id)
		}
		return nil, err
	}
	return item, nil
}

// List returns all portfolio items, newest first.
func (s *PortfolioService) List(ctx context.Context, viewerID uint) ([]*models.Portfolio, error) {
	return s.portfolios.List(ctx, viewerID)
}

// Update edits a portfolio item. Only the owner or an admin may edit.
func (s *PortfolioService) Update(ctx context.Context, userID uint, id uint, input PortfolioInput) (*models.Portfolio, error) {
	item, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID && !s.isAdmin(ctx, userID) {
		return nil, models.NewForbiddenError("you can only edit your own portfolio items")
	}
	if err := s.validate(input); err != nil {
		return nil, err
	}
	item.Title = strings.TrimSpace(input.Title)
	item.Description = input.Description
	item.Link = strings.TrimSpace(input.Link)
	if err := s.portfolios.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes a portfolio item. Only the owner or an admin may delete.
func (s *PortfolioService) Delete(ctx context.Context, userID uint, id uint) error {
	item, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if item.UserID != userID && !s.isAdmin(ctx, userID) {
		return models.NewForbiddenError("you can only delete your own portfolio items")
	}
	return s.portfolios.Delete(ctx, id)
}
