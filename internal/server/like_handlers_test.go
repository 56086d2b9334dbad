package server

import (
	"fmt"
	"net/http"
	"testing"

	"atelier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleLike(t *testing.T) {
	t.Run("Post Like Round Trip", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		author := createServerUser(t, db, "author", false)
		reader := createServerUser(t, db, "reader", false)
		post := createServerPost(t, db, author.ID)
		token := tokenFor(t, s, reader)

		path := fmt.Sprintf("/api/posts/%d/like", post.ID)

		resp := doJSON(t, app, http.MethodPost, path, nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result struct {
			Liked     bool `json:"liked"`
			LikeCount int  `json:"like_count"`
		}
		decodeBody(t, resp, &result)
		assert.True(t, result.Liked)
		assert.Equal(t, 1, result.LikeCount)

		// Second toggle unlikes and reports the fresh count.
		resp = doJSON(t, app, http.MethodPost, path, nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &result)
		assert.False(t, result.Liked)
		assert.Equal(t, 0, result.LikeCount)

		var stored models.Post
		require.NoError(t, db.First(&stored, post.ID).Error)
		assert.Equal(t, 0, stored.LikeCount)
	})

	t.Run("Comment Like", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		author := createServerUser(t, db, "author", false)
		reader := createServerUser(t, db, "reader", false)
		post := createServerPost(t, db, author.ID)
		comment := &models.Comment{Content: "nice", PostID: post.ID, UserID: author.ID}
		require.NoError(t, db.Create(comment).Error)
		token := tokenFor(t, s, reader)

		resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/comments/%d/like", comment.ID), nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result struct {
			Liked     bool `json:"liked"`
			LikeCount int  `json:"like_count"`
		}
		decodeBody(t, resp, &result)
		assert.True(t, result.Liked)
		assert.Equal(t, 1, result.LikeCount)
	})

	t.Run("Requires Auth", func(t *testing.T) {
		_, app, db := setupTestServer(t)
		author := createServerUser(t, db, "author", false)
		post := createServerPost(t, db, author.ID)

		resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", post.ID), nil, "")
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Missing Target", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		reader := createServerUser(t, db, "reader", false)
		token := tokenFor(t, s, reader)

		resp := doJSON(t, app, http.MethodPost, "/api/posts/999/like", nil, token)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
