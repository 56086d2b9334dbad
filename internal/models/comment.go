package models

import "time"

// TombstoneContent replaces a soft-deleted comment's content in views.
const TombstoneContent = "[deleted]"

// Comment represents a node in a post's comment tree. ParentID is nil for
// root comments. Depth is resolved once at creation time (parent depth + 1)
// and stored, not recomputed per read.
//
// Comments are not gorm-soft-deleted: a leaf delete removes the row outright,
// while deleting a comment that has replies sets IsDeleted so the thread
// shape survives as a tombstone.
type Comment struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	Content   string   `gorm:"type:text;not null" json:"content"`
	PostID    uint     `gorm:"not null;index" json:"post_id"`
	UserID    uint     `gorm:"not null;index" json:"user_id"`
	User      User     `gorm:"foreignKey:UserID" json:"user"`
	ParentID  *uint    `gorm:"index" json:"parent_id,omitempty"`
	Parent    *Comment `gorm:"foreignKey:ParentID" json:"-"`
	Depth     int      `gorm:"not null;default:0" json:"depth"`
	IsDeleted bool     `gorm:"not null;default:false;index" json:"is_deleted"`

	LikeCount int `gorm:"not null;default:0" json:"like_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentView is a rendered node of the comment forest returned to readers.
// Replies is always present, never nil. Tombstoned nodes keep their position,
// depth and replies but expose no content or author.
type CommentView struct {
	ID             uint           `json:"id"`
	Content        string         `json:"content"`
	PostID         uint           `json:"post_id"`
	UserID         uint           `json:"user_id,omitempty"`
	Username       string         `json:"username,omitempty"`
	Depth          int            `json:"depth"`
	IsDeleted      bool           `json:"is_deleted"`
	LikeCount      int            `json:"like_count"`
	IsLikedByMe    bool           `json:"is_liked_by_me"`
	CreatedAt      time.Time      `json:"created_at"`
	Replies        []*CommentView `json:"replies"`
	HasMoreReplies bool           `json:"has_more_replies"`
}
