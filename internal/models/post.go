// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is an authored article. UserID is fixed at creation.
type Post struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"not null" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	ImageURL string `json:"image_url"`
	Views    int64  `gorm:"not null;default:0" json:"views"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`
	User     User   `gorm:"foreignKey:UserID" json:"-"`
	// Author is the public view of User, filled after a read.
	Author     *PublicProfile `gorm:"-" json:"user"`
	Categories []Category     `gorm:"many2many:post_categories" json:"categories"`
	Tags       []Tag          `gorm:"many2many:post_tags" json:"tags"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int64 `gorm:"->;-:migration" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked bool `gorm:"->;-:migration" json:"liked"`
	// LikerIDs and CommentIDs are filled on single-post reads only.
	LikerIDs   []uint    `gorm:"-" json:"liker_ids,omitempty"`
	CommentIDs []uint    `gorm:"-" json:"comment_ids,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AfterFind exposes the preloaded author without private account fields.
func (p *Post) AfterFind(*gorm.DB) error {
	p.Author = authorOf(&p.User)
	return nil
}
