package repository

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TermRepository persists one taxonomy. Categories and tags share the
// implementation and differ only in table names.
type TermRepository interface {
	Kind() models.TermKind
	List(ctx context.Context) ([]models.Term, error)
	GetByID(ctx context.Context, id uint) (*models.Term, error)
	// ExistingIDs returns the subset of ids that exist.
	ExistingIDs(ctx context.Context, ids []uint) ([]uint, error)
	FindBySlugs(ctx context.Context, slugs []string) ([]models.Term, error)
	// CreateIfAbsent inserts the term unless its slug or name is taken and
	// reports whether a row was inserted. Either way the stored row is returned.
	CreateIfAbsent(ctx context.Context, name, slug string) (*models.Term, bool, error)
	Create(ctx context.Context, name, slug string) (*models.Term, error)
	Update(ctx context.Context, id uint, name, slug string) (*models.Term, error)
	// Delete removes the term and its post links.
	Delete(ctx context.Context, id uint) error
}

type termRepository struct {
	db        *gorm.DB
	kind      models.TermKind
	table     string
	joinTable string
	joinKey   string
}

// NewCategoryRepository returns the repository for categories.
func NewCategoryRepository(db *gorm.DB) TermRepository {
	return &termRepository{db: db, kind: models.KindCategory, table: "categories", joinTable: "post_categories", joinKey: "category_id"}
}

// NewTagRepository returns the repository for tags.
func NewTagRepository(db *gorm.DB) TermRepository {
	return &termRepository{db: db, kind: models.KindTag, table: "tags", joinTable: "post_tags", joinKey: "tag_id"}
}

func (r *termRepository) Kind() models.TermKind { return r.kind }

func (r *termRepository) resource() string {
	if r.kind == models.KindCategory {
		return "Category"
	}
	return "Tag"
}

func (r *termRepository) List(ctx context.Context) ([]models.Term, error) {
	terms := []models.Term{}
	if err := r.db.WithContext(ctx).Table(r.table).Order("name ASC").Find(&terms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return terms, nil
}

func (r *termRepository) GetByID(ctx context.Context, id uint) (*models.Term, error) {
	var term models.Term
	if err := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).Take(&term).Error; err != nil {
		return nil, notFoundOr(err, r.resource(), id)
	}
	return &term, nil
}

func (r *termRepository) ExistingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	found := []uint{}
	if len(ids) == 0 {
		return found, nil
	}
	if err := r.db.WithContext(ctx).Table(r.table).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return found, nil
}

func (r *termRepository) FindBySlugs(ctx context.Context, slugs []string) ([]models.Term, error) {
	terms := []models.Term{}
	if len(slugs) == 0 {
		return terms, nil
	}
	if err := r.db.WithContext(ctx).Table(r.table).Where("slug IN ?", slugs).Find(&terms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return terms, nil
}

func (r *termRepository) CreateIfAbsent(ctx context.Context, name, slug string) (*models.Term, bool, error) {
	db := r.db.WithContext(ctx)
	term := models.Term{Name: name, Slug: slug}
	res := db.Table(r.table).Clauses(clause.OnConflict{DoNothing: true}).Create(&term)
	if res.Error != nil {
		return nil, false, models.NewInternalError(res.Error)
	}
	created := res.RowsAffected > 0

	var stored models.Term
	err := db.Table(r.table).Where("slug = ?", slug).Take(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The insert lost to a row with the same name but a different slug.
		err = db.Table(r.table).Where("name = ?", name).Take(&stored).Error
	}
	if err != nil {
		return nil, false, models.NewInternalError(err)
	}
	return &stored, created, nil
}

func (r *termRepository) Create(ctx context.Context, name, slug string) (*models.Term, error) {
	term := models.Term{Name: name, Slug: slug}
	if err := r.db.WithContext(ctx).Table(r.table).Create(&term).Error; err != nil {
		return nil, r.conflictOr(err)
	}
	return &term, nil
}

func (r *termRepository) Update(ctx context.Context, id uint, name, slug string) (*models.Term, error) {
	db := r.db.WithContext(ctx)
	res := db.Table(r.table).Where("id = ?", id).Updates(map[string]any{
		"name":       name,
		"slug":       slug,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return nil, r.conflictOr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError(r.resource(), id)
	}
	return r.GetByID(ctx, id)
}

func (r *termRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+r.joinTable+" WHERE "+r.joinKey+" = ?", id).Error; err != nil {
			return err
		}
		res := tx.Exec("DELETE FROM "+r.table+" WHERE id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError(r.resource(), id)
		}
		return nil
	})
	return wrapTxError(err)
}

func (r *termRepository) conflictOr(err error) error {
	if isUniqueConstraintError(err) {
		return models.NewConflictError(r.resource() + " with this name already exists")
	}
	return models.NewInternalError(err)
}
