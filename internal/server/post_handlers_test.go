package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"atelier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePostHandler(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		user := createServerUser(t, db, "author", false)
		token := tokenFor(t, s, user)

		resp := doJSON(t, app, http.MethodPost, "/api/posts", map[string]interface{}{
			"title":   "Hello",
			"content": "World",
			"status":  "published",
		}, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var post struct {
			ID     uint   `json:"id"`
			Title  string `json:"title"`
			Status string `json:"status"`
		}
		decodeBody(t, resp, &post)
		assert.NotZero(t, post.ID)
		assert.Equal(t, "Hello", post.Title)
		assert.Equal(t, models.PostStatusPublished, post.Status)
	})

	t.Run("Missing Title", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		user := createServerUser(t, db, "author", false)
		token := tokenFor(t, s, user)

		resp := doJSON(t, app, http.MethodPost, "/api/posts", map[string]interface{}{
			"content": "no title",
		}, token)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetPostViewTracking(t *testing.T) {
	t.Run("Anonymous View Mints Cookie And Counts Once", func(t *testing.T) {
		_, app, db := setupTestServer(t)
		author := createServerUser(t, db, "author", false)
		post := createServerPost(t, db, author.ID)
		path := fmt.Sprintf("/api/posts/%d", post.ID)

		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var cookie string
		for _, c := range resp.Cookies() {
			if c.Name == viewerCookie {
				cookie = c.Value
			}
		}
		require.NotEmpty(t, cookie, "anonymous viewers get a dedup cookie")

		var stored models.Post
		require.NoError(t, db.First(&stored, post.ID).Error)
		assert.Equal(t, 1, stored.ViewCount)

		// Same cookie again inside the window does not count.
		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: viewerCookie, Value: cookie})
		resp, err = app.Test(req, -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.NoError(t, db.First(&stored, post.ID).Error)
		assert.Equal(t, 1, stored.ViewCount)
	})

	t.Run("Owner Views Never Count", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		author := createServerUser(t, db, "author", false)
		post := createServerPost(t, db, author.ID)
		token := tokenFor(t, s, author)

		resp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), nil, token)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var stored models.Post
		require.NoError(t, db.First(&stored, post.ID).Error)
		assert.Equal(t, 0, stored.ViewCount)
	})

	t.Run("Distinct Viewers Each Count", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		author := createServerUser(t, db, "author", false)
		post := createServerPost(t, db, author.ID)
		path := fmt.Sprintf("/api/posts/%d", post.ID)

		for i := 0; i < 3; i++ {
			reader := createServerUser(t, db, fmt.Sprintf("reader%d", i), false)
			resp := doJSON(t, app, http.MethodGet, path, nil, tokenFor(t, s, reader))
			_ = resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}

		var stored models.Post
		require.NoError(t, db.First(&stored, post.ID).Error)
		assert.Equal(t, 3, stored.ViewCount)
	})
}

func TestCommentHandlers(t *testing.T) {
	t.Run("Create And Read Thread", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		author := createServerUser(t, db, "author", false)
		reader := createServerUser(t, db, "reader", false)
		post := createServerPost(t, db, author.ID)
		token := tokenFor(t, s, reader)

		resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), map[string]interface{}{
			"content": "first!",
		}, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created struct {
			ID    uint `json:"id"`
			Depth int  `json:"depth"`
		}
		decodeBody(t, resp, &created)
		require.NotZero(t, created.ID)
		assert.Equal(t, 0, created.Depth)

		// Reply to it.
		resp = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), map[string]interface{}{
			"content":   "welcome",
			"parent_id": created.ID,
		}, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var reply struct {
			Depth int `json:"depth"`
		}
		decodeBody(t, resp, &reply)
		assert.Equal(t, 1, reply.Depth)

		resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.ID), nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var thread struct {
			Comments []struct {
				ID      uint `json:"id"`
				Replies []struct {
					Content string `json:"content"`
				} `json:"replies"`
			} `json:"comments"`
		}
		decodeBody(t, resp, &thread)
		require.Len(t, thread.Comments, 1)
		require.Len(t, thread.Comments[0].Replies, 1)
		assert.Equal(t, "welcome", thread.Comments[0].Replies[0].Content)

		var stored models.Post
		require.NoError(t, db.First(&stored, post.ID).Error)
		assert.Equal(t, 2, stored.CommentCount)
	})

	t.Run("Delete Comment With Replies Leaves Tombstone", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		author := createServerUser(t, db, "author", false)
		post := createServerPost(t, db, author.ID)
		token := tokenFor(t, s, author)

		resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), map[string]interface{}{
			"content": "parent",
		}, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var parent struct {
			ID uint `json:"id"`
		}
		decodeBody(t, resp, &parent)

		resp = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), map[string]interface{}{
			"content":   "child",
			"parent_id": parent.ID,
		}, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()

		resp = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/posts/%d/comments/%d", post.ID, parent.ID), nil, token)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		// The tombstone still anchors its reply in the thread.
		resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.ID), nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var thread struct {
			Comments []struct {
				Content   string `json:"content"`
				IsDeleted bool   `json:"is_deleted"`
				Replies   []struct {
					Content string `json:"content"`
				} `json:"replies"`
			} `json:"comments"`
		}
		decodeBody(t, resp, &thread)
		require.Len(t, thread.Comments, 1)
		assert.True(t, thread.Comments[0].IsDeleted)
		assert.Equal(t, models.TombstoneContent, thread.Comments[0].Content)
		require.Len(t, thread.Comments[0].Replies, 1)
		assert.Equal(t, "child", thread.Comments[0].Replies[0].Content)
	})
}

func TestAdminTaxonomyHandlers(t *testing.T) {
	t.Run("Admin Creates Category", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		admin := createServerUser(t, db, "admin", true)
		token := tokenFor(t, s, admin)

		resp := doJSON(t, app, http.MethodPost, "/api/admin/categories", map[string]string{
			"name": "Field Notes",
		}, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var category struct {
			Name string `json:"name"`
			Slug string `json:"slug"`
		}
		decodeBody(t, resp, &category)
		assert.Equal(t, "Field Notes", category.Name)
		assert.Equal(t, "field-notes", category.Slug)
	})

	t.Run("Non Admin Forbidden", func(t *testing.T) {
		s, app, db := setupTestServer(t)
		user := createServerUser(t, db, "plain", false)
		token := tokenFor(t, s, user)

		resp := doJSON(t, app, http.MethodPost, "/api/admin/categories", map[string]string{
			"name": "Nope",
		}, token)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
