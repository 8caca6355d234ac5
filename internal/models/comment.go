package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a remark on a post. A reply carries ParentID, which always names a
// comment on the same post.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"not null;index" json:"post_id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"-"`
	Author    *PublicProfile `gorm:"-" json:"user"`
	ParentID  *uint          `gorm:"index" json:"parent_id"`
	Text      string         `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (c *Comment) AfterFind(*gorm.DB) error {
	c.Author = authorOf(&c.User)
	return nil
}
