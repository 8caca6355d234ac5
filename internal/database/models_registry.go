package database

import "inkwell/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Join tables post_categories and post_tags are created through Post's many2many fields.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Category{},
		&models.Tag{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
	}
}
