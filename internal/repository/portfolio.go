package repository

import (
	"context"

	"atelier/internal/cache"
	"atelier/internal/models"

	"gorm.io/gorm"
)

// PortfolioRepository defines the interface for portfolio data operations
type PortfolioRepository interface {
	Create(ctx context.Context, item *models.Portfolio) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Portfolio, error)
	List(ctx context.Context, viewerID uint) ([]*models.Portfolio, error)
	Update(ctx context.Context, item *models.Portfolio) error
	Delete(ctx context.Context, id uint) error
}

type portfolioRepository struct {
	db *gorm.DB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *gorm.DB) PortfolioRepository {
	return &portfolioRepository{db: db}
}

func (r *portfolioRepository) applyViewer(db *gorm.DB, viewerID uint) *gorm.DB {
	if viewerID != 0 {
		return db.Select(
			"portfolios.*, EXISTS(SELECT 1 FROM likes WHERE likes.target_type = ? AND likes.target_id = portfolios.id AND likes.user_id = ?) AS liked",
			models.KindPortfolio, viewerID,
		)
	}
	return db
}

func (r *portfolioRepository) Create(ctx context.Context, item *models.Portfolio) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *portfolioRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Portfolio, error) {
	var item models.Portfolio

	if viewerID == 0 {
		err := cache.Aside(ctx, cache.PortfolioKey(id), &item, cache.PostTTL, func() error {
			return r.db.WithContext(ctx).Preload("User").First(&item, id).Error
		})
		if err != nil {
			return nil, err
		}
		return &item, nil
	}

	err := r.applyViewer(r.db.WithContext(ctx), viewerID).
		Preload("User").
		First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *portfolioRepository) List(ctx context.Context, viewerID uint) ([]*models.Portfolio, error) {
	var items []*models.Portfolio
	err := r.applyViewer(r.db.WithContext(ctx), viewerID).
		Preload("User").
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *portfolioRepository) Update(ctx context.Context, item *models.Portfolio) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return err
	}
	cache.InvalidatePortfolio(ctx, item.ID)
	return nil
}

func (r *portfolioRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Portfolio{}, id).Error; err != nil {
		return err
	}
	cache.InvalidatePortfolio(ctx, id)
	return nil
}
