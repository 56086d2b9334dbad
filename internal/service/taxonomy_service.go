package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"atelier/internal/models"
	"atelier/internal/repository"

	"gorm.io/gorm"
)

// TaxonomyInput contains the data needed to create a category or tag
type TaxonomyInput struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a display name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// TaxonomyService handles category and tag management. Creation is
// admin-only; the post_count columns are owned by the counter store and read
// straight off the rows here.
type TaxonomyService struct {
	categories repository.CategoryRepository
	tags       repository.TagRepository
	isAdmin    func(ctx context.Context, userID uint) bool
}

// NewTaxonomyService creates a new taxonomy service
func NewTaxonomyService(categories repository.CategoryRepository, tags repository.TagRepository, isAdmin func(ctx context.Context, userID uint) bool) *TaxonomyService {
	if isAdmin == nil {
		isAdmin = func(context.Context, uint) bool { return false }
	}
	return &TaxonomyService{categories: categories, tags: tags, isAdmin: isAdmin}
}

func (s *TaxonomyService) normalize(input TaxonomyInput) (name, slug string, err error) {
	name = strings.TrimSpace(input.Name)
	if name == "" {
		return "", "", models.NewValidationError("name is required")
	}
	slug = strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return "", "", models.NewValidationError("name must contain letters or digits")
	}
	return name, slug, nil
}

// CreateCategory creates a new category. Admin only.
func (s *TaxonomyService) CreateCategory(ctx context.Context, userID uint, input TaxonomyInput) (*models.Category, error) {
	if !s.isAdmin(ctx, userID) {
		return nil, models.NewForbiddenError("only admins can manage categories")
	}
	name, slug, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.categories.GetBySlug(ctx, slug); err == nil {
		return nil, models.NewConflictError("a category with this slug already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	category := &models.Category{Name: name, Slug: slug}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories returns all categories with their current post counts.
func (s *TaxonomyService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.categories.List(ctx)
}

// GetCategoryBySlug returns one category.
func (s *TaxonomyService) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	category, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("category", slug)
		}
		return nil, err
	}
	return category, nil
}

// CreateTag creates a new tag. Admin only.
func (s *TaxonomyService) CreateTag(ctx context.Context, userID uint, input TaxonomyInput) (*models.Tag, error) {
	if !s.isAdmin(ctx, userID) {
		return nil, models.NewForbiddenError("only admins can manage tags")
	}
	name, slug, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.tags.GetBySlug(ctx, slug); err == nil {
		return nil, models.NewConflictError("a tag with this slug already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	tag := &models.Tag{Name: name, Slug: slug}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// ListTags returns all tags with their current post counts.
func (s *TaxonomyService) ListTags(ctx context.Context) ([]*models.Tag, error) {
	return s.tags.List(ctx)
}
