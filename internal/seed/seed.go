// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"atelier/internal/models"
	"atelier/internal/repository"
	"atelier/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

var categoryNames = []string{
	"Engineering", "Design", "Essays", "Notes", "Projects", "Reviews",
}

var tagNames = []string{
	"go", "postgres", "redis", "distributed-systems", "frontend", "backend",
	"tooling", "performance", "testing", "career",
}

// Seed populates the database with test data. Counters are NOT maintained
// while inserting; the reconciliation pass at the end computes them all from
// the raw rows, which doubles as a standing exercise of that path.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)
	gofakeit.Seed(time.Now().UnixNano())
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	users, err := createUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("%d test users created", len(users))

	categories, tags, err := createTaxonomy(db)
	if err != nil {
		return fmt.Errorf("failed to create taxonomy: %w", err)
	}
	log.Printf("%d categories and %d tags available", len(categories), len(tags))

	posts, err := createPosts(db, r, users, categories, tags, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("%d posts created", len(posts))

	comments, err := createComments(db, r, users, posts)
	if err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	log.Printf("%d comments created", len(comments))

	likes, err := createLikes(db, r, users, posts, comments)
	if err != nil {
		return fmt.Errorf("failed to create likes: %w", err)
	}
	log.Printf("%d likes created", likes)

	repaired, err := repository.NewCounterStore(db).Reconcile(context.Background())
	if err != nil {
		return fmt.Errorf("failed to reconcile counters: %w", err)
	}
	log.Printf("Reconciliation initialized %d counters", repaired)

	log.Println("Database seeding completed successfully!")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE likes, comments, post_tags, posts, tags, categories, portfolios, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createUsers(db *gorm.DB, count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)

	// A predictable admin for local logins.
	admin := models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: string(hashedPassword),
		Bio:          "Site owner.",
		IsAdmin:      true,
	}
	if err := db.Create(&admin).Error; err == nil {
		users = append(users, admin)
	}

	for i := len(users); i < count; i++ {
		username := fmt.Sprintf("%s%d", gofakeit.Username(), i)
		user := models.User{
			Username:     username,
			Email:        fmt.Sprintf("%s@example.com", username),
			PasswordHash: string(hashedPassword),
			Bio:          gofakeit.Sentence(8),
		}
		if err := db.Create(&user).Error; err != nil {
			log.Printf("Failed to create user %s: %v", username, err)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func createTaxonomy(db *gorm.DB) ([]models.Category, []models.Tag, error) {
	categories := make([]models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		category := models.Category{Name: name, Slug: service.Slugify(name)}
		if err := db.Where(models.Category{Slug: category.Slug}).FirstOrCreate(&category).Error; err != nil {
			return nil, nil, err
		}
		categories = append(categories, category)
	}

	tags := make([]models.Tag, 0, len(tagNames))
	for _, name := range tagNames {
		tag := models.Tag{Name: name, Slug: service.Slugify(name)}
		if err := db.Where(models.Tag{Slug: tag.Slug}).FirstOrCreate(&tag).Error; err != nil {
			return nil, nil, err
		}
		tags = append(tags, tag)
	}
	return categories, tags, nil
}

func createPosts(db *gorm.DB, r *rand.Rand, users []models.User, categories []models.Category, tags []models.Tag, count int) ([]models.Post, error) {
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		user := users[r.Intn(len(users))]
		post := models.Post{
			Title:   gofakeit.Sentence(5),
			Content: gofakeit.Paragraph(2, 4, 8, "\n\n"),
			Status:  models.PostStatusPublished,
			UserID:  user.ID,
		}
		if r.Float32() < 0.1 {
			post.Status = models.PostStatusDraft
		}
		if r.Float32() < 0.8 {
			category := categories[r.Intn(len(categories))]
			post.CategoryID = &category.ID
		}
		if err := db.Omit("Tags").Create(&post).Error; err != nil {
			log.Printf("Failed to create post: %v", err)
			continue
		}

		for _, tag := range pick(r, tags, r.Intn(4)) {
			row := models.PostTag{PostID: post.ID, TagID: tag.ID}
			_ = db.Create(&row).Error
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// createComments builds threads of varying depth, including some deeper than
// the rendering cap so the continuation path has data to show.
func createComments(db *gorm.DB, r *rand.Rand, users []models.User, posts []models.Post) ([]models.Comment, error) {
	var comments []models.Comment
	for _, post := range posts {
		parents := []*models.Comment{nil}
		n := r.Intn(12)
		for i := 0; i < n; i++ {
			parent := parents[r.Intn(len(parents))]
			comment := models.Comment{
				Content: gofakeit.Sentence(10),
				PostID:  post.ID,
				UserID:  users[r.Intn(len(users))].ID,
			}
			if parent != nil {
				comment.ParentID = &parent.ID
				comment.Depth = parent.Depth + 1
			}
			if err := db.Create(&comment).Error; err != nil {
				return nil, err
			}
			comments = append(comments, comment)
			// Deeper nodes stay candidates so long chains can form.
			parents = append(parents, &comments[len(comments)-1])
		}
	}

	// Tombstone a few mid-thread comments that have replies.
	for i := range comments {
		if r.Float32() < 0.05 {
			var replies int64
			db.Model(&models.Comment{}).Where("parent_id = ?", comments[i].ID).Count(&replies)
			if replies > 0 {
				db.Model(&models.Comment{}).Where("id = ?", comments[i].ID).
					Updates(map[string]interface{}{"is_deleted": true, "content": ""})
			}
		}
	}
	return comments, nil
}

func createLikes(db *gorm.DB, r *rand.Rand, users []models.User, posts []models.Post, comments []models.Comment) (int, error) {
	created := 0
	for _, user := range users {
		for _, post := range pick(r, posts, r.Intn(6)) {
			like := models.Like{UserID: user.ID, TargetType: models.KindPost, TargetID: post.ID}
			if err := db.Create(&like).Error; err == nil {
				created++
			}
		}
		for _, comment := range pick(r, comments, r.Intn(4)) {
			like := models.Like{UserID: user.ID, TargetType: models.KindComment, TargetID: comment.ID}
			if err := db.Create(&like).Error; err == nil {
				created++
			}
		}
	}
	return created, nil
}

func pick[T any](r *rand.Rand, items []T, n int) []T {
	if n > len(items) {
		n = len(items)
	}
	idx := r.Perm(len(items))[:n]
	out := make([]T, 0, n)
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}
