// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"fmt"
	"time"

	"atelier/internal/models"
	"atelier/internal/observability"

	"gorm.io/gorm"
)

// CounterStore maintains the denormalized aggregate fields on parent
// entities. Every adjustment is a single atomic column update executed on the
// caller's transaction, so a row change and its counter adjustment commit or
// roll back together. Counters are never read-modified-written.
type CounterStore interface {
	// Adjust applies delta to a named counter field on the parent row. If the
	// parent row no longer exists the adjustment is silently absorbed: a
	// deleted parent's counters are moot and the reconciliation pass is the
	// canonical repair for any drift.
	Adjust(ctx context.Context, tx *gorm.DB, kind models.Kind, parentID uint, field string, delta int) error

	// Value reads the current counter value on the caller's transaction,
	// so a toggle can return the post-adjustment count it just produced
	// rather than a separately-fetched, possibly stale one.
	Value(ctx context.Context, tx *gorm.DB, kind models.Kind, parentID uint, field string) (int, error)

	// Reconcile recomputes every counter from a COUNT(*) over the true child
	// rows and overwrites drifted values. Idempotent; returns the number of
	// rows repaired.
	Reconcile(ctx context.Context) (int64, error)
}

type counterStore struct {
	db *gorm.DB
}

// NewCounterStore creates a CounterStore backed by the given database handle.
func NewCounterStore(db *gorm.DB) CounterStore {
	return &counterStore{db: db}
}

// counterModels whitelists which counter fields exist on which parent kind.
// The field name is interpolated into SQL, so it must come from this table,
// never from request input.
var counterModels = map[models.Kind]map[string]func() interface{}{
	models.KindPost: {
		models.FieldLikeCount:    func() interface{} { return &models.Post{} },
		models.FieldCommentCount: func() interface{} { return &models.Post{} },
		models.FieldViewCount:    func() interface{} { return &models.Post{} },
	},
	models.KindComment: {
		models.FieldLikeCount: func() interface{} { return &models.Comment{} },
	},
	models.KindCategory: {
		models.FieldPostCount: func() interface{} { return &models.Category{} },
	},
	models.KindTag: {
		models.FieldPostCount: func() interface{} { return &models.Tag{} },
	},
	models.KindPortfolio: {
		models.FieldLikeCount: func() interface{} { return &models.Portfolio{} },
		models.FieldViewCount: func() interface{} { return &models.Portfolio{} },
	},
}

func counterModel(kind models.Kind, field string) (interface{}, error) {
	fields, ok := counterModels[kind]
	if !ok {
		return nil, fmt.Errorf("counter store: unknown parent kind %q", kind)
	}
	newModel, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("counter store: kind %q has no counter field %q", kind, field)
	}
	return newModel(), nil
}

func (s *counterStore) Adjust(ctx context.Context, tx *gorm.DB, kind models.Kind, parentID uint, field string, delta int) error {
	if delta == 0 {
		return nil
	}
	model, err := counterModel(kind, field)
	if err != nil {
		return err
	}
	if tx == nil {
		tx = s.db
	}

	res := tx.WithContext(ctx).
		Model(model).
		Where("id = ?", parentID).
		UpdateColumn(field, gorm.Expr(field+" + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Parent gone (or soft-deleted): absorb, never resurrect.
		observability.CounterAdjustmentsAbsorbed.WithLabelValues(string(kind), field).Inc()
		return nil
	}

	direction := "inc"
	if delta < 0 {
		direction = "dec"
	}
	observability.CounterAdjustments.WithLabelValues(string(kind), field, direction).Inc()
	return nil
}

func (s *counterStore) Value(ctx context.Context, tx *gorm.DB, kind models.Kind, parentID uint, field string) (int, error) {
	model, err := counterModel(kind, field)
	if err != nil {
		return 0, err
	}
	if tx == nil {
		tx = s.db
	}

	var value int
	err = tx.WithContext(ctx).
		Model(model).
		Where("id = ?", parentID).
		Select(field).
		Scan(&value).Error
	return value, err
}

// reconcileStmt rewrites one counter column from its source-of-truth rows.
// The WHERE clause restricts the update to drifted rows so RowsAffected
// reports how many counters were actually repaired.
type reconcileStmt struct {
	table string
	field string
	sql   string
	args  []interface{}
}

func reconcileStmts() []reconcileStmt {
	return []reconcileStmt{
		{
			table: "posts", field: models.FieldLikeCount,
			sql: `UPDATE posts SET like_count = (SELECT COUNT(*) FROM likes WHERE likes.target_type = ? AND likes.target_id = posts.id)
			      WHERE like_count <> (SELECT COUNT(*) FROM likes WHERE likes.target_type = ? AND likes.target_id = posts.id)`,
			args: []interface{}{models.KindPost, models.KindPost},
		},
		{
			table: "posts", field: models.FieldCommentCount,
			sql: `UPDATE posts SET comment_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_deleted = ?)
			      WHERE comment_count <> (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_deleted = ?)`,
			args: []interface{}{false, false},
		},
		{
			table: "comments", field: models.FieldLikeCount,
			sql: `UPDATE comments SET like_count = (SELECT COUNT(*) FROM likes WHERE likes.target_type = ? AND likes.target_id = comments.id)
			      WHERE like_count <> (SELECT COUNT(*) FROM likes WHERE likes.target_type = ? AND likes.target_id = comments.id)`,
			args: []interface{}{models.KindComment, models.KindComment},
		},
		{
			table: "portfolios", field: models.FieldLikeCount,
			sql: `UPDATE portfolios SET like_count = (SELECT COUNT(*) FROM likes WHERE likes.target_type = ? AND likes.target_id = portfolios.id)
			      WHERE like_count <> (SELECT COUNT(*) FROM likes WHERE likes.target_type = ? AND likes.target_id = portfolios.id)`,
			args: []interface{}{models.KindPortfolio, models.KindPortfolio},
		},
		{
			table: "categories", field: models.FieldPostCount,
			sql: `UPDATE categories SET post_count = (SELECT COUNT(*) FROM posts WHERE posts.category_id = categories.id AND posts.deleted_at IS NULL)
			      WHERE post_count <> (SELECT COUNT(*) FROM posts WHERE posts.category_id = categories.id AND posts.deleted_at IS NULL)`,
		},
		{
			table: "tags", field: models.FieldPostCount,
			sql: `UPDATE tags SET post_count = (SELECT COUNT(*) FROM post_tags WHERE post_tags.tag_id = tags.id)
			      WHERE post_count <> (SELECT COUNT(*) FROM post_tags WHERE post_tags.tag_id = tags.id)`,
		},
	}
}

// Reconcile is the operational repair pass: one-shot, idempotent, safe to run
// after bulk imports or whenever drift is suspected. View counts have no
// source-of-truth rows and are left untouched.
func (s *counterStore) Reconcile(ctx context.Context) (int64, error) {
	start := time.Now()
	defer observability.ObserveReconcile(start)

	var repaired int64
	for _, stmt := range reconcileStmts() {
		res := s.db.WithContext(ctx).Exec(stmt.sql, stmt.args...)
		if res.Error != nil {
			return repaired, fmt.Errorf("reconcile %s.%s: %w", stmt.table, stmt.field, res.Error)
		}
		if res.RowsAffected > 0 {
			observability.ReconcileRepairs.WithLabelValues(stmt.table, stmt.field).Add(float64(res.RowsAffected))
			repaired += res.RowsAffected
		}
	}
	return repaired, nil
}
