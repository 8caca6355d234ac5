package models

import "time"

// Like records one user's like on a post.
// The combination of UserID and PostID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
