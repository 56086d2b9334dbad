package repository

import (
	"context"

	"atelier/internal/cache"
	"atelier/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations. Counter
// columns on posts are stored values maintained by the counter store; this
// repository only ever reads them.
type PostRepository interface {
	Create(ctx context.Context, tx *gorm.DB, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int, viewerID uint, sort string) ([]*models.Post, error)
	ListByCategory(ctx context.Context, categoryID uint, limit, offset int, viewerID uint) ([]*models.Post, error)
	Update(ctx context.Context, tx *gorm.DB, post *models.Post) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	TagIDs(ctx context.Context, tx *gorm.DB, postID uint) ([]uint, error)
	AttachTag(ctx context.Context, tx *gorm.DB, postID, tagID uint) (attached bool, err error)
	DetachTag(ctx context.Context, tx *gorm.DB, postID, tagID uint) (detached bool, err error)
	DetachAllTags(ctx context.Context, tx *gorm.DB, postID uint) (detachedTagIDs []uint, err error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// applyViewer attaches the per-viewer liked flag in the same query. Only the
// requesting viewer's own like state is ever exposed.
func (r *postRepository) applyViewer(db *gorm.DB, viewerID uint) *gorm.DB {
	if viewerID != 0 {
		return db.Select(
			"posts.*, EXISTS(SELECT 1 FROM likes WHERE likes.target_type = ? AND likes.target_id = posts.id AND likes.user_id = ?) AS liked",
			models.KindPost, viewerID,
		)
	}
	return db
}

func (r *postRepository) Create(ctx context.Context, tx *gorm.DB, post *models.Post) error {
	err := r.handle(tx).WithContext(ctx).Omit("Tags").Create(post).Error
	if err == nil {
		cache.Invalidate(ctx, cache.PostsListKey)
	}
	return err
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post

	if viewerID == 0 {
		// Anonymous reads of hot posts go through the cache-aside path.
		err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
			return r.db.WithContext(ctx).
				Preload("User").
				Preload("Category").
				Preload("Tags").
				First(&post, id).Error
		})
		if err != nil {
			return nil, err
		}
		return &post, nil
	}

	err := r.applyViewer(r.db.WithContext(ctx), viewerID).
		Preload("User").
		Preload("Category").
		Preload("Tags").
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.handle(tx).WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// applySort appends the ORDER BY clause for the requested sort type.
func (r *postRepository) applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "top":
		return db.Order("like_count DESC, created_at DESC")
	case "discussed":
		return db.Order("comment_count DESC, created_at DESC")
	default: // "new" and anything unrecognized
		return db.Order("created_at DESC")
	}
}

func (r *postRepository) List(ctx context.Context, limit, offset int, viewerID uint, sort string) ([]*models.Post, error) {
	var posts []*models.Post
	base := r.applyViewer(r.db.WithContext(ctx), viewerID).
		Preload("User").
		Preload("Category").
		Preload("Tags").
		Where("status = ?", models.PostStatusPublished)
	err := r.applySort(base, sort).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByCategory(ctx context.Context, categoryID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyViewer(r.db.WithContext(ctx), viewerID).
		Preload("User").
		Preload("Category").
		Preload("Tags").
		Where("category_id = ? AND status = ?", categoryID, models.PostStatusPublished).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) Update(ctx context.Context, tx *gorm.DB, post *models.Post) error {
	if err := r.handle(tx).WithContext(ctx).Omit("Tags").Save(post).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if err := r.handle(tx).WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) TagIDs(ctx context.Context, tx *gorm.DB, postID uint) ([]uint, error) {
	var ids []uint
	err := r.handle(tx).WithContext(ctx).
		Model(&models.PostTag{}).
		Where("post_id = ?", postID).
		Pluck("tag_id", &ids).Error
	return ids, err
}

func (r *postRepository) AttachTag(ctx context.Context, tx *gorm.DB, postID, tagID uint) (bool, error) {
	// Raw insert-if-absent keeps the join-row change and the tag counter
	// adjustment one-row-one-adjustment: the caller adjusts only when a row
	// was actually inserted.
	res := r.handle(tx).WithContext(ctx).Exec(
		`INSERT INTO post_tags (post_id, tag_id, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (post_id, tag_id) DO NOTHING`,
		postID, tagID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		cache.InvalidatePost(ctx, postID)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) DetachTag(ctx context.Context, tx *gorm.DB, postID, tagID uint) (bool, error) {
	res := r.handle(tx).WithContext(ctx).
		Where("post_id = ? AND tag_id = ?", postID, tagID).
		Delete(&models.PostTag{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		cache.InvalidatePost(ctx, postID)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) DetachAllTags(ctx context.Context, tx *gorm.DB, postID uint) ([]uint, error) {
	ids, err := r.TagIDs(ctx, tx, postID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.handle(tx).WithContext(ctx).
		Where("post_id = ?", postID).
		Delete(&models.PostTag{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
