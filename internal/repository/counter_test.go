package repository

import (
	"context"
	"fmt"
	"testing"

	"atelier/internal/database"
	"atelier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUserAndPost(t *testing.T, db *gorm.DB) (*models.User, *models.Post) {
	t.Helper()
	user := &models.User{Username: "author", Email: "author@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	post := &models.Post{Title: "t", Content: "c", Status: models.PostStatusPublished, UserID: user.ID}
	require.NoError(t, db.Omit("Tags").Create(post).Error)
	return user, post
}

func TestCounterStore_Adjust(t *testing.T) {
	t.Parallel()

	t.Run("applies delta in place", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)
		_, post := seedUserAndPost(t, db)

		require.NoError(t, store.Adjust(context.Background(), nil, models.KindPost, post.ID, models.FieldLikeCount, 3))
		require.NoError(t, store.Adjust(context.Background(), nil, models.KindPost, post.ID, models.FieldLikeCount, -1))

		value, err := store.Value(context.Background(), nil, models.KindPost, post.ID, models.FieldLikeCount)
		require.NoError(t, err)
		assert.Equal(t, 2, value)
	})

	t.Run("zero delta is a no-op", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)
		_, post := seedUserAndPost(t, db)

		require.NoError(t, store.Adjust(context.Background(), nil, models.KindPost, post.ID, models.FieldLikeCount, 0))
		value, err := store.Value(context.Background(), nil, models.KindPost, post.ID, models.FieldLikeCount)
		require.NoError(t, err)
		assert.Zero(t, value)
	})

	t.Run("missing parent is absorbed silently", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)

		assert.NoError(t, store.Adjust(context.Background(), nil, models.KindPost, 4242, models.FieldLikeCount, 1))
	})

	t.Run("soft-deleted parent is absorbed silently", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)
		_, post := seedUserAndPost(t, db)
		require.NoError(t, db.Delete(&models.Post{}, post.ID).Error)

		require.NoError(t, store.Adjust(context.Background(), nil, models.KindPost, post.ID, models.FieldLikeCount, 1))

		var got models.Post
		require.NoError(t, db.Unscoped().First(&got, post.ID).Error)
		assert.Zero(t, got.LikeCount, "adjustments must not resurrect soft-deleted counters")
	})

	t.Run("unknown kind or field is rejected", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)

		assert.Error(t, store.Adjust(context.Background(), nil, models.Kind("widget"), 1, models.FieldLikeCount, 1))
		assert.Error(t, store.Adjust(context.Background(), nil, models.KindComment, 1, models.FieldViewCount, 1))
	})

	t.Run("rolls back with the enclosing transaction", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)
		_, post := seedUserAndPost(t, db)

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := store.Adjust(context.Background(), tx, models.KindPost, post.ID, models.FieldLikeCount, 1); err != nil {
				return err
			}
			return fmt.Errorf("boom")
		})
		require.Error(t, err)

		value, verr := store.Value(context.Background(), nil, models.KindPost, post.ID, models.FieldLikeCount)
		require.NoError(t, verr)
		assert.Zero(t, value)
	})
}

func TestCounterStore_Reconcile(t *testing.T) {
	t.Parallel()

	seedDrifted := func(t *testing.T, db *gorm.DB) (*models.Post, *models.Comment) {
		user := &models.User{Username: "author", Email: "author@example.com", PasswordHash: "x"}
		require.NoError(t, db.Create(user).Error)
		category := &models.Category{Name: "Essays", Slug: "essays"}
		require.NoError(t, db.Create(category).Error)
		tag := &models.Tag{Name: "go", Slug: "go"}
		require.NoError(t, db.Create(tag).Error)

		post := &models.Post{
			Title: "t", Content: "c", Status: models.PostStatusPublished,
			UserID: user.ID, CategoryID: &category.ID,
			// Seeded drift: stored counters disagree with the rows below.
			LikeCount: 7, CommentCount: 9, ViewCount: 3,
		}
		require.NoError(t, db.Omit("Tags").Create(post).Error)
		require.NoError(t, db.Create(&models.PostTag{PostID: post.ID, TagID: tag.ID}).Error)

		comment := &models.Comment{Content: "c", PostID: post.ID, UserID: user.ID}
		require.NoError(t, db.Create(comment).Error)
		tombstone := &models.Comment{PostID: post.ID, UserID: user.ID, IsDeleted: true}
		require.NoError(t, db.Create(tombstone).Error)

		require.NoError(t, db.Create(&models.Like{UserID: user.ID, TargetType: models.KindPost, TargetID: post.ID}).Error)
		require.NoError(t, db.Create(&models.Like{UserID: user.ID, TargetType: models.KindComment, TargetID: comment.ID}).Error)
		return post, comment
	}

	t.Run("converges counters to true counts", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)
		post, comment := seedDrifted(t, db)

		repaired, err := store.Reconcile(context.Background())
		require.NoError(t, err)
		assert.Positive(t, repaired)

		var gotPost models.Post
		require.NoError(t, db.First(&gotPost, post.ID).Error)
		assert.Equal(t, 1, gotPost.LikeCount)
		assert.Equal(t, 1, gotPost.CommentCount, "tombstones are excluded from comment_count")
		assert.Equal(t, 3, gotPost.ViewCount, "view_count has no source rows and is left as-is")

		var gotComment models.Comment
		require.NoError(t, db.First(&gotComment, comment.ID).Error)
		assert.Equal(t, 1, gotComment.LikeCount)

		var gotCategory models.Category
		require.NoError(t, db.First(&gotCategory, 1).Error)
		assert.Equal(t, 1, gotCategory.PostCount)

		var gotTag models.Tag
		require.NoError(t, db.First(&gotTag, 1).Error)
		assert.Equal(t, 1, gotTag.PostCount)
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)
		seedDrifted(t, db)

		first, err := store.Reconcile(context.Background())
		require.NoError(t, err)
		assert.Positive(t, first)

		second, err := store.Reconcile(context.Background())
		require.NoError(t, err)
		assert.Zero(t, second, "a second pass over repaired data touches nothing")
	})

	t.Run("reports only drifted rows", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)
		store := NewCounterStore(db)
		_, post := seedUserAndPost(t, db)
		require.NoError(t, db.Create(&models.Like{UserID: 1, TargetType: models.KindPost, TargetID: post.ID}).Error)
		// like_count is stale (0), everything else is consistent.

		repaired, err := store.Reconcile(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 1, repaired)
	})
}
