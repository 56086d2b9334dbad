package service

import (
	"context"
	"errors"
	"strings"

	"atelier/internal/cache"
	"atelier/internal/models"
	"atelier/internal/observability"
	"atelier/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// CreateCommentInput contains the data needed to create a comment
type CreateCommentInput struct {
	PostID   uint   `json:"post_id"`
	ParentID *uint  `json:"parent_id,omitempty"`
	Content  string `json:"content"`
}

// UpdateCommentInput contains the data needed to update a comment
type UpdateCommentInput struct {
	Content string `json:"content"`
}

// Thread is one page of a post's comment forest.
type Thread struct {
	Comments []*models.CommentView `json:"comments"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
}

// CommentService handles comment business logic: tree writes keep the parent
// post's comment_count in step, tree reads assemble the nested view.
type CommentService struct {
	db       *gorm.DB
	comments repository.CommentRepository
	posts    repository.PostRepository
	likes    repository.LikeRepository
	counters repository.CounterStore
	maxDepth int
	isAdmin  func(ctx context.Context, userID uint) bool
}

// NewCommentService creates a new comment service. maxDepth caps how deep the
// assembled view nests before collapsing into a continuation; it never limits
// how deep comments may be written.
func NewCommentService(
	db *gorm.DB,
	comments repository.CommentRepository,
	posts repository.PostRepository,
	likes repository.LikeRepository,
	counters repository.CounterStore,
	maxDepth int,
	isAdmin func(ctx context.Context, userID uint) bool,
) *CommentService {
	if maxDepth < 1 {
		maxDepth = 5
	}
	if isAdmin == nil {
		isAdmin = func(context.Context, uint) bool { return false }
	}
	return &CommentService{
		db:       db,
		comments: comments,
		posts:    posts,
		likes:    likes,
		counters: counters,
		maxDepth: maxDepth,
		isAdmin:  isAdmin,
	}
}

// CreateComment validates and persists a new comment, resolving its depth
// from the parent and bumping the post's comment_count in the same
// transaction.
func (s *CommentService) CreateComment(ctx context.Context, userID uint, input CreateCommentInput) (*models.Comment, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("authentication required to comment")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, models.NewValidationError("comment content is required")
	}
	if len(content) > 10000 {
		return nil, models.NewValidationError("comment content must be at most 10000 characters")
	}

	comment := &models.Comment{
		Content: content,
		PostID:  input.PostID,
		UserID:  userID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.posts.GetForUpdate(ctx, tx, input.PostID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("post", input.PostID)
			}
			return err
		}

		if input.ParentID != nil {
			parent, err := s.comments.GetByID(ctx, tx, *input.ParentID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return models.NewNotFoundError("comment", *input.ParentID)
				}
				return err
			}
			if parent.PostID != input.PostID {
				return models.NewValidationError("parent comment belongs to a different post")
			}
			if parent.IsDeleted {
				return models.NewValidationError("cannot reply to a deleted comment")
			}
			comment.ParentID = &parent.ID
			comment.Depth = parent.Depth + 1
		}

		if err := s.comments.Create(ctx, tx, comment); err != nil {
			return err
		}
		return s.counters.Adjust(ctx, tx, models.KindPost, input.PostID, models.FieldCommentCount, 1)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, input.PostID)

	created, err := s.comments.GetByID(ctx, nil, comment.ID)
	if err != nil {
		return comment, nil
	}
	return created, nil
}

// UpdateComment edits a comment's content. Only the author may edit, and
// tombstones are immutable.
func (s *CommentService) UpdateComment(ctx context.Context, userID uint, commentID uint, input UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, nil, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("comment", commentID)
		}
		return nil, err
	}
	if comment.UserID != userID {
		return nil, models.NewForbiddenError("you can only edit your own comments")
	}
	if comment.IsDeleted {
		return nil, models.NewValidationError("cannot edit a deleted comment")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, models.NewValidationError("comment content is required")
	}

	comment.Content = content
	if err := s.comments.Update(ctx, nil, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment. A comment with replies becomes a
// tombstone so the thread shape survives; a leaf is removed outright along
// with its like rows. Either way the post's comment_count drops exactly once.
func (s *CommentService) DeleteComment(ctx context.Context, userID uint, commentID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comment, err := s.comments.GetByID(ctx, tx, commentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("comment", commentID)
			}
			return err
		}
		if comment.UserID != userID && !s.isAdmin(ctx, userID) {
			return models.NewForbiddenError("you can only delete your own comments")
		}
		if comment.IsDeleted {
			// Already tombstoned; deleting again must not decrement twice.
			return nil
		}

		replies, err := s.comments.ReplyCount(ctx, tx, commentID)
		if err != nil {
			return err
		}
		if replies > 0 {
			if err := s.comments.Tombstone(ctx, tx, commentID); err != nil {
				return err
			}
		} else {
			if err := s.comments.HardDelete(ctx, tx, commentID); err != nil {
				return err
			}
			if err := s.likes.DeleteForTarget(ctx, tx, models.KindComment, commentID); err != nil {
				return err
			}
		}

		if err := s.counters.Adjust(ctx, tx, models.KindPost, comment.PostID, models.FieldCommentCount, -1); err != nil {
			return err
		}
		cache.InvalidatePost(ctx, comment.PostID)
		return nil
	})
}

// Thread returns one page of a post's comment forest: paginated roots, each
// carrying its full reply subtree up to the configured depth. Deeper branches
// are collapsed behind HasMoreReplies and fetched via Subtree.
func (s *CommentService) Thread(ctx context.Context, postID uint, viewerID uint, limit, offset int) (*Thread, error) {
	span, ctx := observability.NewSpan(ctx, "comment.thread")
	defer span.End()
	span.AddAttributes(attribute.Int64("post.id", int64(postID)))

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.posts.GetForUpdate(ctx, nil, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("post", postID)
		}
		return nil, err
	}

	roots, err := s.comments.Roots(ctx, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	descendants, err := s.comments.Descendants(ctx, postID)
	if err != nil {
		return nil, err
	}

	forest, err := s.assemble(ctx, viewerID, roots, descendants, 0)
	if err != nil {
		return nil, err
	}
	return &Thread{Comments: forest, Limit: limit, Offset: offset}, nil
}

// Subtree returns the continuation for a collapsed branch: the given comment
// re-rooted at depth 0 of the view, nested up to the depth cap again.
func (s *CommentService) Subtree(ctx context.Context, postID uint, commentID uint, viewerID uint) (*models.CommentView, error) {
	rows, err := s.comments.Subtree(ctx, postID, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("comment", commentID)
		}
		return nil, err
	}

	root := rows[0]
	forest, err := s.assemble(ctx, viewerID, []*models.Comment{root}, rows[1:], root.Depth)
	if err != nil {
		return nil, err
	}
	return forest[0], nil
}

// assemble links flat comment rows into a nested view. baseDepth is the
// stored depth of the roots being rendered; rendered depth is measured from
// there so a continuation view gets the full cap again. Sibling order is
// preserved from the repository's created_at ordering.
func (s *CommentService) assemble(ctx context.Context, viewerID uint, roots, descendants []*models.Comment, baseDepth int) ([]*models.CommentView, error) {
	liked, err := s.likedSet(ctx, viewerID, roots, descendants)
	if err != nil {
		return nil, err
	}

	children := make(map[uint][]*models.Comment, len(roots))
	for _, c := range descendants {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	var render func(c *models.Comment) *models.CommentView
	render = func(c *models.Comment) *models.CommentView {
		v := &models.CommentView{
			ID:          c.ID,
			Content:     c.Content,
			PostID:      c.PostID,
			UserID:      c.UserID,
			Username:    c.User.Username,
			Depth:       c.Depth,
			IsDeleted:   c.IsDeleted,
			LikeCount:   c.LikeCount,
			IsLikedByMe: liked[c.ID],
			CreatedAt:   c.CreatedAt,
			Replies:     []*models.CommentView{},
		}
		if c.IsDeleted {
			// Tombstones keep their slot but reveal nothing about the author.
			v.Content = models.TombstoneContent
			v.UserID = 0
			v.Username = ""
			v.IsLikedByMe = false
		}
		kids := children[c.ID]
		if len(kids) == 0 {
			return v
		}
		if c.Depth-baseDepth >= s.maxDepth-1 {
			// Replies exist below the rendering cap; the client fetches them
			// as a re-rooted continuation.
			v.HasMoreReplies = true
			return v
		}
		for _, kid := range kids {
			v.Replies = append(v.Replies, render(kid))
		}
		return v
	}

	forest := make([]*models.CommentView, 0, len(roots))
	for _, root := range roots {
		forest = append(forest, render(root))
	}
	return forest, nil
}

// likedSet bulk-resolves which of the page's comments the viewer has liked.
func (s *CommentService) likedSet(ctx context.Context, viewerID uint, roots, descendants []*models.Comment) (map[uint]bool, error) {
	liked := make(map[uint]bool)
	if viewerID == 0 {
		return liked, nil
	}
	ids := make([]uint, 0, len(roots)+len(descendants))
	for _, c := range roots {
		ids = append(ids, c.ID)
	}
	for _, c := range descendants {
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return liked, nil
	}
	likedIDs, err := s.likes.LikedTargetIDs(ctx, viewerID, models.KindComment, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range likedIDs {
		liked[id] = true
	}
	return liked, nil
}
