package models

import "time"

// Like is a (user, target) like association. The composite uniqueness
// constraint is the arbiter for concurrent toggle-on races: at most one like
// per (user, target kind, target id). Rows are created on toggle-on and hard
// deleted on toggle-off, never updated in place.
type Like struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_like_user_target" json:"user_id"`
	TargetType Kind      `gorm:"not null;uniqueIndex:idx_like_user_target;size:16" json:"target_type"`
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_like_user_target;index:idx_like_target" json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}
