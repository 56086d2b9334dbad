package repository

import (
	"context"
	"errors"

	"atelier/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository provides the like-association row primitives the toggle
// protocol is built on. Rows are only ever inserted and hard deleted; the
// composite uniqueness constraint arbitrates concurrent insert races.
type LikeRepository interface {
	// Exists reports whether the (user, target) association row is present,
	// read on the given transaction.
	Exists(ctx context.Context, tx *gorm.DB, userID uint, kind models.Kind, targetID uint) (bool, error)

	// Insert attempts to create the association row. A concurrent duplicate
	// is not an error: inserted is false when the uniqueness constraint
	// absorbed the row.
	Insert(ctx context.Context, tx *gorm.DB, userID uint, kind models.Kind, targetID uint) (inserted bool, err error)

	// Delete removes the association row; deleted is false when no row
	// existed.
	Delete(ctx context.Context, tx *gorm.DB, userID uint, kind models.Kind, targetID uint) (deleted bool, err error)

	// LikedTargetIDs returns the subset of targetIDs of the given kind that
	// the user has liked. Used to attach per-viewer liked state in bulk; it
	// never exposes other users' like state.
	LikedTargetIDs(ctx context.Context, userID uint, kind models.Kind, targetIDs []uint) ([]uint, error)

	// DeleteForTarget removes all like rows for a target. Used when a target
	// is hard deleted and the store's cascade does not cover it.
	DeleteForTarget(ctx context.Context, tx *gorm.DB, kind models.Kind, targetID uint) error
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new LikeRepository.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *likeRepository) Exists(ctx context.Context, tx *gorm.DB, userID uint, kind models.Kind, targetID uint) (bool, error) {
	var like models.Like
	err := r.handle(tx).WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, kind, targetID).
		First(&like).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *likeRepository) Insert(ctx context.Context, tx *gorm.DB, userID uint, kind models.Kind, targetID uint) (bool, error) {
	like := models.Like{
		UserID:     userID,
		TargetType: kind,
		TargetID:   targetID,
	}
	// ON CONFLICT DO NOTHING: the uniqueness constraint, not the caller's
	// earlier read, decides the race.
	res := r.handle(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) Delete(ctx context.Context, tx *gorm.DB, userID uint, kind models.Kind, targetID uint) (bool, error) {
	res := r.handle(tx).WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, kind, targetID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) LikedTargetIDs(ctx context.Context, userID uint, kind models.Kind, targetIDs []uint) ([]uint, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", userID, kind, targetIDs).
		Pluck("target_id", &liked).Error
	return liked, err
}

func (r *likeRepository) DeleteForTarget(ctx context.Context, tx *gorm.DB, kind models.Kind, targetID uint) error {
	return r.handle(tx).WithContext(ctx).
		Where("target_type = ? AND target_id = ?", kind, targetID).
		Delete(&models.Like{}).Error
}
