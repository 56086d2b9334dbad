package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atelier/internal/config"
	"atelier/internal/database"
	"atelier/internal/middleware"
	"atelier/internal/models"
	"atelier/internal/repository"
	"atelier/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestServer wires a full Server against an in-memory database with all
// routes registered. Rate limiting is bypassed via APP_ENV=test.
func setupTestServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:              "test_secret",
		Env:                    "test",
		CommentMaxDepth:        5,
		ViewDedupWindow:        time.Hour,
		ViewDedupSweepInterval: time.Hour,
	}
	middleware.InitMiddleware(cfg)

	s := &Server{
		config:        cfg,
		db:            db,
		userRepo:      repository.NewUserRepository(db),
		postRepo:      repository.NewPostRepository(db),
		commentRepo:   repository.NewCommentRepository(db),
		likeRepo:      repository.NewLikeRepository(db),
		categoryRepo:  repository.NewCategoryRepository(db),
		tagRepo:       repository.NewTagRepository(db),
		portfolioRepo: repository.NewPortfolioRepository(db),
		counters:      repository.NewCounterStore(db),
	}
	s.postService = service.NewPostService(
		db, s.postRepo, s.categoryRepo, s.tagRepo, s.counters, s.adminCheck)
	s.commentService = service.NewCommentService(
		db, s.commentRepo, s.postRepo, s.likeRepo, s.counters,
		cfg.CommentMaxDepth, s.adminCheck)
	s.likeService = service.NewLikeService(db, s.likeRepo, s.counters)
	s.taxonomyService = service.NewTaxonomyService(s.categoryRepo, s.tagRepo, s.adminCheck)
	s.portfolioService = service.NewPortfolioService(s.portfolioRepo, s.adminCheck)
	s.viewTracker = service.NewViewTracker(s.counters, cfg.ViewDedupWindow, cfg.ViewDedupSweepInterval)

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app, db
}

func createServerUser(t *testing.T, db *gorm.DB, username string, admin bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: string(hash),
		IsAdmin:      admin,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func tokenFor(t *testing.T, s *Server, user *models.User) string {
	t.Helper()
	token, err := s.generateToken(user.ID, user.Username)
	require.NoError(t, err)
	return token
}

func createServerPost(t *testing.T, db *gorm.DB, userID uint) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:   "a post",
		Content: "content",
		Status:  models.PostStatusPublished,
		UserID:  userID,
	}
	require.NoError(t, db.Omit("Tags").Create(post).Error)
	return post
}

// doJSON issues a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
