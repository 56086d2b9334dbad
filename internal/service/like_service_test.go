package service

import (
	"context"
	"fmt"
	"testing"

	"atelier/internal/models"
	"atelier/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newLikeService(db *gorm.DB) *LikeService {
	return NewLikeService(db, repository.NewLikeRepository(db), repository.NewCounterStore(db))
}

func TestLikeService_Toggle(t *testing.T) {
	t.Parallel()

	t.Run("like then unlike returns fresh counts", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		svc := newLikeService(db)
		user := createTestUser(t, db, "alice")
		post := createTestPost(t, db, user.ID)

		result, err := svc.Toggle(context.Background(), user.ID, models.KindPost, post.ID)
		require.NoError(t, err)
		assert.True(t, result.Liked)
		assert.Equal(t, 1, result.LikeCount)
		assert.Equal(t, 1, postByID(t, db, post.ID).LikeCount)

		result, err = svc.Toggle(context.Background(), user.ID, models.KindPost, post.ID)
		require.NoError(t, err)
		assert.False(t, result.Liked)
		assert.Equal(t, 0, result.LikeCount)
		assert.Equal(t, 0, postByID(t, db, post.ID).LikeCount)
	})

	t.Run("many users produce matching count and rows", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		svc := newLikeService(db)
		owner := createTestUser(t, db, "owner")
		post := createTestPost(t, db, owner.ID)

		const n = 50
		for i := 0; i < n; i++ {
			user := createTestUser(t, db, fmt.Sprintf("fan%d", i))
			result, err := svc.Toggle(context.Background(), user.ID, models.KindPost, post.ID)
			require.NoError(t, err)
			assert.True(t, result.Liked)
		}

		var rows int64
		require.NoError(t, db.Model(&models.Like{}).
			Where("target_type = ? AND target_id = ?", models.KindPost, post.ID).
			Count(&rows).Error)
		assert.EqualValues(t, n, rows)
		assert.Equal(t, n, postByID(t, db, post.ID).LikeCount)
	})

	t.Run("anonymous toggle is rejected", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		svc := newLikeService(db)
		user := createTestUser(t, db, "bob")
		post := createTestPost(t, db, user.ID)

		_, err := svc.Toggle(context.Background(), 0, models.KindPost, post.ID)
		require.Error(t, err)
		appErr := &models.AppError{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeUnauthorized, appErr.Code)
	})

	t.Run("missing target is rejected before any write", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		svc := newLikeService(db)
		user := createTestUser(t, db, "carol")

		_, err := svc.Toggle(context.Background(), user.ID, models.KindPost, 9999)
		require.Error(t, err)
		appErr := &models.AppError{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeNotFound, appErr.Code)

		var rows int64
		require.NoError(t, db.Model(&models.Like{}).Count(&rows).Error)
		assert.Zero(t, rows)
	})

	t.Run("unlikeable kind is rejected", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		svc := newLikeService(db)
		user := createTestUser(t, db, "dave")

		_, err := svc.Toggle(context.Background(), user.ID, models.KindTag, 1)
		require.Error(t, err)
		appErr := &models.AppError{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeValidation, appErr.Code)
	})

	t.Run("comment likes adjust the comment counter", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		svc := newLikeService(db)
		user := createTestUser(t, db, "erin")
		post := createTestPost(t, db, user.ID)
		comment := createTestComment(t, db, post.ID, user.ID, nil)

		result, err := svc.Toggle(context.Background(), user.ID, models.KindComment, comment.ID)
		require.NoError(t, err)
		assert.True(t, result.Liked)
		assert.Equal(t, 1, result.LikeCount)

		var got models.Comment
		require.NoError(t, db.First(&got, comment.ID).Error)
		assert.Equal(t, 1, got.LikeCount)
		// Post like count untouched by a comment like.
		assert.Equal(t, 0, postByID(t, db, post.ID).LikeCount)
	})
}

// TestLikeService_ToggleDuplicateRace drives the conflict path directly: a
// duplicate like whose insert is absorbed by the unique index must resolve to
// the committed liked state instead of flipping it back off.
func TestLikeService_ToggleDuplicateRace(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	likes := &staleReadLikeRepo{LikeRepository: repository.NewLikeRepository(db)}
	svc := NewLikeService(db, likes, repository.NewCounterStore(db))
	user := createTestUser(t, db, "racer")
	post := createTestPost(t, db, user.ID)

	// The winner's request already committed: like row present, counter
	// adjusted.
	require.NoError(t, db.Create(&models.Like{
		UserID: user.ID, TargetType: models.KindPost, TargetID: post.ID,
	}).Error)
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error)

	result, err := svc.Toggle(context.Background(), user.ID, models.KindPost, post.ID)
	require.NoError(t, err)
	assert.True(t, result.Liked, "lost race must resolve to the winner's state")
	assert.Equal(t, 1, result.LikeCount)

	var rows int64
	require.NoError(t, db.Model(&models.Like{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows, "duplicate insert must be absorbed, not doubled")
	assert.Equal(t, 1, postByID(t, db, post.ID).LikeCount)
}

// staleReadLikeRepo simulates losing an insert race: the first existence
// check reads the state from before the winner committed. The duplicate
// insert then collides with the winner's row and is absorbed by the unique
// index.
type staleReadLikeRepo struct {
	repository.LikeRepository
	reads int
}

func (r *staleReadLikeRepo) Exists(ctx context.Context, tx *gorm.DB, userID uint, kind models.Kind, targetID uint) (bool, error) {
	r.reads++
	if r.reads == 1 {
		return false, nil
	}
	return r.LikeRepository.Exists(ctx, tx, userID, kind, targetID)
}
