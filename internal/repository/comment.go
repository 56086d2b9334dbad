package repository

import (
	"context"

	"atelier/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations.
// Comments never use soft deletion: a comment with replies is tombstoned in
// place so the thread keeps its shape, a leaf is removed outright.
type CommentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, comment *models.Comment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Comment, error)
	Roots(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error)
	Descendants(ctx context.Context, postID uint) ([]*models.Comment, error)
	Subtree(ctx context.Context, postID uint, rootID uint) ([]*models.Comment, error)
	ReplyCount(ctx context.Context, tx *gorm.DB, id uint) (int64, error)
	Update(ctx context.Context, tx *gorm.DB, comment *models.Comment) error
	Tombstone(ctx context.Context, tx *gorm.DB, id uint) error
	HardDelete(ctx context.Context, tx *gorm.DB, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *commentRepository) Create(ctx context.Context, tx *gorm.DB, comment *models.Comment) error {
	return r.handle(tx).WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.handle(tx).WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// Roots returns the page of top-level comments for a post, oldest first.
// Sibling order is stable under inserts because created_at never changes.
func (r *commentRepository) Roots(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

// Descendants returns every non-root comment on a post in one query. The
// tree is assembled in memory; two round trips per thread regardless of
// depth or fan-out.
func (r *commentRepository) Descendants(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ? AND parent_id IS NOT NULL", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

// Subtree returns the root comment plus every comment on the same post at a
// greater depth. The assembler discards rows that do not descend from rootID,
// which wastes some rows on busy posts but keeps this a single indexed scan.
func (r *commentRepository) Subtree(ctx context.Context, postID uint, rootID uint) ([]*models.Comment, error) {
	var root models.Comment
	if err := r.db.WithContext(ctx).Preload("User").
		Where("post_id = ?", postID).
		First(&root, rootID).Error; err != nil {
		return nil, err
	}
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ? AND depth > ?", postID, root.Depth).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return append([]*models.Comment{&root}, comments...), nil
}

func (r *commentRepository) ReplyCount(ctx context.Context, tx *gorm.DB, id uint) (int64, error) {
	var count int64
	err := r.handle(tx).WithContext(ctx).
		Model(&models.Comment{}).
		Where("parent_id = ?", id).
		Count(&count).Error
	return count, err
}

func (r *commentRepository) Update(ctx context.Context, tx *gorm.DB, comment *models.Comment) error {
	return r.handle(tx).WithContext(ctx).Save(comment).Error
}

// Tombstone blanks out a comment that still has replies. The row stays so
// descendants keep their place in the thread.
func (r *commentRepository) Tombstone(ctx context.Context, tx *gorm.DB, id uint) error {
	return r.handle(tx).WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"content":    "",
		}).Error
}

func (r *commentRepository) HardDelete(ctx context.Context, tx *gorm.DB, id uint) error {
	return r.handle(tx).WithContext(ctx).Delete(&models.Comment{}, id).Error
}
