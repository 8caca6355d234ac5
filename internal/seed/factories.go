// Package seed creates demo data for development databases. It is never
// used by the API server.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options tune how the factory builds records.
type Options struct {
	// SkipBcrypt hashes the default password once with the minimum cost.
	SkipBcrypt bool
	// DryRun builds records with synthetic ids and writes nothing.
	DryRun bool
	// MaxDays bounds how far back created_at timestamps are spread.
	MaxDays int
}

// Factory builds domain records with gofakeit and persists them.
type Factory struct {
	db     *gorm.DB
	opts   Options
	rng    *rand.Rand
	hash   string
	nextID uint
}

func NewFactory(db *gorm.DB, opts Options) *Factory {
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:   db,
		opts: opts,
		// #nosec G404: acceptable for seeding
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// createdAt picks a timestamp within the last MaxDays.
func (f *Factory) createdAt() time.Time {
	back := time.Duration(f.rng.Intn(f.opts.MaxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) assignID() uint {
	f.nextID++
	return f.nextID
}

// BuildUser returns a verified user with a username that passes validation.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}

	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return -1
		}
	}, strings.ToLower(gofakeit.Username()))
	if len(base) > 14 {
		base = base[:14]
	}
	username := fmt.Sprintf("%s%d", base, gofakeit.Number(100, 99999))

	user := &models.User{
		Username:      username,
		Email:         username + "@example.com",
		Password:      hash,
		Role:          models.RoleUser,
		Bio:           gofakeit.Sentence(10),
		AvatarURL:     fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		EmailVerified: true,
		Socials: models.Socials{
			Github:  "https://github.com/" + username,
			Website: gofakeit.URL(),
		},
		CreatedAt: f.createdAt(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if f.opts.DryRun {
		user.ID = f.assignID()
		log.Printf("[dry-run] CreateUser: %s", user.Username)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureTerms returns the categories and tags with the given names, creating
// the missing ones.
func (f *Factory) EnsureTerms(categories, tags []string) ([]models.Category, []models.Tag, error) {
	cats := make([]models.Category, 0, len(categories))
	for _, name := range categories {
		var c models.Category
		if err := f.ensureTerm(name, &c, &c.Term); err != nil {
			return nil, nil, err
		}
		cats = append(cats, c)
	}
	tgs := make([]models.Tag, 0, len(tags))
	for _, name := range tags {
		var t models.Tag
		if err := f.ensureTerm(name, &t, &t.Term); err != nil {
			return nil, nil, err
		}
		tgs = append(tgs, t)
	}
	return cats, tgs, nil
}

func (f *Factory) ensureTerm(name string, model any, term *models.Term) error {
	name, slug, err := validation.ValidateTermName(name)
	if err != nil {
		return err
	}
	term.Name, term.Slug = name, slug
	if f.opts.DryRun {
		term.ID = f.assignID()
		return nil
	}
	return f.db.Where("slug = ?", slug).FirstOrCreate(model).Error
}

// BuildPost returns a post by author filed under a random subset of the terms.
func (f *Factory) BuildPost(author *models.User, cats []models.Category, tags []models.Tag, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		Title:     strings.TrimSuffix(gofakeit.Sentence(f.rng.Intn(5)+3), "."),
		Content:   gofakeit.Paragraph(f.rng.Intn(3)+1, f.rng.Intn(4)+2, 12, "\n\n"),
		UserID:    author.ID,
		CreatedAt: f.createdAt(),
	}
	if f.rng.Float32() < 0.4 {
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
	}
	if len(cats) > 0 {
		post.Categories = []models.Category{cats[f.rng.Intn(len(cats))]}
	}
	for _, i := range f.rng.Perm(len(tags))[:min(len(tags), f.rng.Intn(4))] {
		post.Tags = append(post.Tags, tags[i])
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost builds and persists a post with its term links.
func (f *Factory) CreatePost(author *models.User, cats []models.Category, tags []models.Tag, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, cats, tags, overrides...)
	if f.opts.DryRun {
		post.ID = f.assignID()
		log.Printf("[dry-run] CreatePost: user=%d title=%q", post.UserID, post.Title)
		return post, nil
	}
	if err := f.db.Omit("User").Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on post, or a reply when parent is set.
func (f *Factory) CreateComment(user *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	comment := &models.Comment{
		PostID: post.ID,
		UserID: user.ID,
		Text:   gofakeit.Sentence(f.rng.Intn(12) + 3),
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if f.opts.DryRun {
		comment.ID = f.assignID()
		return comment, nil
	}
	if err := f.db.Omit("User").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on post.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error
}
