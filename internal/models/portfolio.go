package models

import (
	"time"

	"gorm.io/gorm"
)

// Portfolio is a project showcase entry. Like posts, it carries persisted
// like/view counters maintained through the counter store.
type Portfolio struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Link        string `json:"link"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	User        User   `gorm:"foreignKey:UserID" json:"user"`

	LikeCount int `gorm:"not null;default:0" json:"like_count"`
	ViewCount int `gorm:"not null;default:0" json:"view_count"`

	// Liked indicates whether the current requesting user liked this entry (computed)
	Liked     bool           `gorm:"->;-:migration" json:"liked"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
