package models

import "time"

// TermKind distinguishes the two taxonomies a post can be filed under.
type TermKind string

const (
	KindCategory TermKind = "category"
	KindTag      TermKind = "tag"
)

// Term is the shape shared by categories and tags.
type Term struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Category struct {
	Term
}

type Tag struct {
	Term
}
