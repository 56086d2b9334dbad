// Package service contains the business logic layer of the application.
package service

import (
	"context"
	"errors"

	"atelier/internal/cache"
	"atelier/internal/models"
	"atelier/internal/observability"
	"atelier/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ToggleResult is the authoritative outcome of a like toggle: the viewer's
// resulting state and the target's count as of the same transaction.
type ToggleResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// LikeService flips a user's like on a target. The whole toggle runs inside
// one transaction so the like row and the counter adjustment commit together.
type LikeService struct {
	db       *gorm.DB
	likes    repository.LikeRepository
	counters repository.CounterStore
}

// NewLikeService creates a new like service
func NewLikeService(db *gorm.DB, likes repository.LikeRepository, counters repository.CounterStore) *LikeService {
	return &LikeService{db: db, likes: likes, counters: counters}
}

var likeTargets = map[models.Kind]func() interface{}{
	models.KindPost:      func() interface{} { return &models.Post{} },
	models.KindComment:   func() interface{} { return &models.Comment{} },
	models.KindPortfolio: func() interface{} { return &models.Portfolio{} },
}

func (s *LikeService) targetExists(ctx context.Context, tx *gorm.DB, kind models.Kind, targetID uint) (bool, error) {
	newModel, ok := likeTargets[kind]
	if !ok {
		return false, models.NewValidationError("invalid like target type")
	}
	var count int64
	err := tx.WithContext(ctx).Model(newModel()).Where("id = ?", targetID).Count(&count).Error
	return count > 0, err
}

// errToggleRaced signals that a duplicate request already committed the same
// flip. The loser reports the committed state instead of flipping it back.
var errToggleRaced = errors.New("like toggle lost insert race")

// Toggle flips userID's like on the target and returns the resulting state
// with a count read in the same transaction. Two concurrent toggles of the
// same pair are arbitrated by the unique index on (user_id, target_type,
// target_id): the loser's conflict is swallowed and resolved by re-reading
// the winner's committed state, never surfaced to the client.
func (s *LikeService) Toggle(ctx context.Context, userID uint, kind models.Kind, targetID uint) (*ToggleResult, error) {
	span, ctx := observability.NewSpan(ctx, "like.toggle")
	defer span.End()
	span.AddAttributes(
		attribute.String("like.target_type", string(kind)),
		attribute.Int64("like.target_id", int64(targetID)),
	)

	if userID == 0 {
		return nil, models.NewUnauthorizedError("authentication required to like")
	}
	if !kind.Likeable() {
		return nil, models.NewValidationError("invalid like target type")
	}

	result, err := s.toggleOnce(ctx, userID, kind, targetID)
	if errors.Is(err, errToggleRaced) {
		// The unique index is per (user, target), so a lost race means a
		// duplicate request from the same user already committed the flip.
		// Swallow the conflict and report the committed state instead of
		// flipping it back.
		observability.LikeToggleConflicts.WithLabelValues(string(kind)).Inc()
		result, err = s.currentState(ctx, userID, kind, targetID)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	switch kind {
	case models.KindPost:
		cache.InvalidatePost(ctx, targetID)
	case models.KindPortfolio:
		cache.InvalidatePortfolio(ctx, targetID)
	}
	return result, nil
}

func (s *LikeService) toggleOnce(ctx context.Context, userID uint, kind models.Kind, targetID uint) (*ToggleResult, error) {
	var result ToggleResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.targetExists(ctx, tx, kind, targetID)
		if err != nil {
			return err
		}
		if !exists {
			return models.NewNotFoundError(string(kind), targetID)
		}

		liked, err := s.likes.Exists(ctx, tx, userID, kind, targetID)
		if err != nil {
			return err
		}

		if liked {
			deleted, err := s.likes.Delete(ctx, tx, userID, kind, targetID)
			if err != nil {
				return err
			}
			if !deleted {
				// Row vanished between read and delete: a duplicate unlike
				// already committed.
				return errToggleRaced
			}
			if err := s.counters.Adjust(ctx, tx, kind, targetID, models.FieldLikeCount, -1); err != nil {
				return err
			}
			result.Liked = false
		} else {
			inserted, err := s.likes.Insert(ctx, tx, userID, kind, targetID)
			if err != nil {
				return err
			}
			if !inserted {
				// ON CONFLICT DO NOTHING absorbed a racing duplicate insert.
				return errToggleRaced
			}
			if err := s.counters.Adjust(ctx, tx, kind, targetID, models.FieldLikeCount, 1); err != nil {
				return err
			}
			result.Liked = true
		}

		count, err := s.counters.Value(ctx, tx, kind, targetID, models.FieldLikeCount)
		if err != nil {
			return err
		}
		result.LikeCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// currentState reports the committed like state without mutating anything.
func (s *LikeService) currentState(ctx context.Context, userID uint, kind models.Kind, targetID uint) (*ToggleResult, error) {
	liked, err := s.likes.Exists(ctx, nil, userID, kind, targetID)
	if err != nil {
		return nil, err
	}
	count, err := s.counters.Value(ctx, nil, kind, targetID, models.FieldLikeCount)
	if err != nil {
		return nil, err
	}
	return &ToggleResult{Liked: liked, LikeCount: count}, nil
}
