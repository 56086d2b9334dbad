package service

import (
	"context"
	"errors"
	"strings"

	"atelier/internal/cache"
	"atelier/internal/models"
	"atelier/internal/repository"

	"gorm.io/gorm"
)

// CreatePostInput contains the data needed to create a post
type CreatePostInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Status     string `json:"status"`
	CategoryID *uint  `json:"category_id,omitempty"`
	TagIDs     []uint `json:"tag_ids,omitempty"`
}

// UpdatePostInput contains the data needed to update a post. Nil fields are
// left unchanged.
type UpdatePostInput struct {
	Title      *string `json:"title,omitempty"`
	Content    *string `json:"content,omitempty"`
	Status     *string `json:"status,omitempty"`
	CategoryID *uint   `json:"category_id,omitempty"`
	ClearCat   bool    `json:"clear_category,omitempty"`
}

// PostService handles post business logic. Category and tag post counts move
// in the same transaction as the membership change that causes them.
type PostService struct {
	db         *gorm.DB
	posts      repository.PostRepository
	categories repository.CategoryRepository
	tags       repository.TagRepository
	counters   repository.CounterStore
	isAdmin    func(ctx context.Context, userID uint) bool
}

// NewPostService creates a new post service
func NewPostService(
	db *gorm.DB,
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	tags repository.TagRepository,
	counters repository.CounterStore,
	isAdmin func(ctx context.Context, userID uint) bool,
) *PostService {
	if isAdmin == nil {
		isAdmin = func(context.Context, uint) bool { return false }
	}
	return &PostService{
		db:         db,
		posts:      posts,
		categories: categories,
		tags:       tags,
		counters:   counters,
		isAdmin:    isAdmin,
	}
}

func validateStatus(status string) (string, error) {
	switch status {
	case "":
		return models.PostStatusDraft, nil
	case models.PostStatusDraft, models.PostStatusPublished:
		return status, nil
	default:
		return "", models.NewValidationError("status must be draft or published")
	}
}

// CreatePost validates and persists a new post, wiring up its category and
// tags with their counters in one transaction.
func (s *PostService) CreatePost(ctx context.Context, userID uint, input CreatePostInput) (*models.Post, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("authentication required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, models.NewValidationError("title is required")
	}
	if len(title) > 200 {
		return nil, models.NewValidationError("title must be at most 200 characters")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, models.NewValidationError("content is required")
	}
	status, err := validateStatus(input.Status)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:      title,
		Content:    input.Content,
		Status:     status,
		UserID:     userID,
		CategoryID: input.CategoryID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.CategoryID != nil {
			if _, err := s.categories.GetByID(ctx, tx, *input.CategoryID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return models.NewNotFoundError("category", *input.CategoryID)
				}
				return err
			}
		}
		if err := s.posts.Create(ctx, tx, post); err != nil {
			return err
		}
		if input.CategoryID != nil {
			if err := s.counters.Adjust(ctx, tx, models.KindCategory, *input.CategoryID, models.FieldPostCount, 1); err != nil {
				return err
			}
		}
		for _, tagID := range input.TagIDs {
			if err := s.attachTagTx(ctx, tx, post.ID, tagID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.posts.GetByID(ctx, post.ID, userID)
}

// GetPost returns a post with the viewer's like state resolved.
func (s *PostService) GetPost(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("post", id)
		}
		return nil, err
	}
	return post, nil
}

// ListPosts returns published posts ordered by the requested sort.
func (s *PostService) ListPosts(ctx context.Context, limit, offset int, viewerID uint, sort string) ([]*models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.posts.List(ctx, limit, offset, viewerID, sort)
}

// ListPostsByCategory returns published posts in a category, newest first.
func (s *PostService) ListPostsByCategory(ctx context.Context, categoryID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.posts.ListByCategory(ctx, categoryID, limit, offset, viewerID)
}

// UpdatePost applies a partial update. Moving a post between categories
// decrements the old category's count and increments the new one atomically
// with the move.
func (s *PostService) UpdatePost(ctx context.Context, userID uint, id uint, input UpdatePostInput) (*models.Post, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.posts.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("post", id)
			}
			return err
		}
		if post.UserID != userID && !s.isAdmin(ctx, userID) {
			return models.NewForbiddenError("you can only edit your own posts")
		}

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return models.NewValidationError("title is required")
			}
			post.Title = title
		}
		if input.Content != nil {
			if strings.TrimSpace(*input.Content) == "" {
				return models.NewValidationError("content is required")
			}
			post.Content = *input.Content
		}
		if input.Status != nil {
			status, err := validateStatus(*input.Status)
			if err != nil {
				return err
			}
			post.Status = status
		}

		oldCategory := post.CategoryID
		switch {
		case input.ClearCat:
			post.CategoryID = nil
		case input.CategoryID != nil:
			if _, err := s.categories.GetByID(ctx, tx, *input.CategoryID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return models.NewNotFoundError("category", *input.CategoryID)
				}
				return err
			}
			post.CategoryID = input.CategoryID
		}

		if err := s.posts.Update(ctx, tx, post); err != nil {
			return err
		}
		return s.recategorize(ctx, tx, oldCategory, post.CategoryID)
	})
	if err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, id, userID)
}

// recategorize moves one unit of post_count between categories when the
// membership actually changed.
func (s *PostService) recategorize(ctx context.Context, tx *gorm.DB, prev, next *uint) error {
	same := (prev == nil && next == nil) || (prev != nil && next != nil && *prev == *next)
	if same {
		return nil
	}
	if prev != nil {
		if err := s.counters.Adjust(ctx, tx, models.KindCategory, *prev, models.FieldPostCount, -1); err != nil {
			return err
		}
	}
	if next != nil {
		if err := s.counters.Adjust(ctx, tx, models.KindCategory, *next, models.FieldPostCount, 1); err != nil {
			return err
		}
	}
	return nil
}

// DeletePost soft-deletes a post and releases its category and tag counter
// contributions.
func (s *PostService) DeletePost(ctx context.Context, userID uint, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.posts.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("post", id)
			}
			return err
		}
		if post.UserID != userID && !s.isAdmin(ctx, userID) {
			return models.NewForbiddenError("you can only delete your own posts")
		}

		if err := s.posts.Delete(ctx, tx, id); err != nil {
			return err
		}
		if post.CategoryID != nil {
			if err := s.counters.Adjust(ctx, tx, models.KindCategory, *post.CategoryID, models.FieldPostCount, -1); err != nil {
				return err
			}
		}
		tagIDs, err := s.posts.DetachAllTags(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, tagID := range tagIDs {
			if err := s.counters.Adjust(ctx, tx, models.KindTag, tagID, models.FieldPostCount, -1); err != nil {
				return err
			}
		}
		return nil
	})
}

// AttachTag adds a tag to a post. Attaching an already-attached tag is a
// no-op that leaves the tag's post_count alone.
func (s *PostService) AttachTag(ctx context.Context, userID uint, postID, tagID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.posts.GetForUpdate(ctx, tx, postID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("post", postID)
			}
			return err
		}
		if post.UserID != userID && !s.isAdmin(ctx, userID) {
			return models.NewForbiddenError("you can only tag your own posts")
		}
		return s.attachTagTx(ctx, tx, postID, tagID)
	})
}

func (s *PostService) attachTagTx(ctx context.Context, tx *gorm.DB, postID, tagID uint) error {
	if _, err := s.tags.GetByID(ctx, tx, tagID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("tag", tagID)
		}
		return err
	}
	attached, err := s.posts.AttachTag(ctx, tx, postID, tagID)
	if err != nil {
		return err
	}
	if !attached {
		return nil
	}
	if err := s.counters.Adjust(ctx, tx, models.KindTag, tagID, models.FieldPostCount, 1); err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.TagListKey)
	return nil
}

// DetachTag removes a tag from a post. Detaching an absent tag is a no-op.
func (s *PostService) DetachTag(ctx context.Context, userID uint, postID, tagID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.posts.GetForUpdate(ctx, tx, postID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("post", postID)
			}
			return err
		}
		if post.UserID != userID && !s.isAdmin(ctx, userID) {
			return models.NewForbiddenError("you can only tag your own posts")
		}
		detached, err := s.posts.DetachTag(ctx, tx, postID, tagID)
		if err != nil {
			return err
		}
		if !detached {
			return nil
		}
		if err := s.counters.Adjust(ctx, tx, models.KindTag, tagID, models.FieldPostCount, -1); err != nil {
			return err
		}
		cache.Invalidate(ctx, cache.TagListKey)
		return nil
	})
}
