package seed

import (
	"fmt"
	"log"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

var (
	defaultCategories = []string{"Technology", "Travel", "Food", "Books", "Science", "Culture"}
	defaultTags       = []string{"go", "web", "databases", "design", "productivity", "recipes", "hiking", "history", "ai", "open source"}
)

// Seeder fills a database with a connected set of demo records.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// Result reports what a run created.
type Result struct {
	Users    []*models.User
	Posts    []*models.Post
	Comments int
	Likes    int
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// ClearAll removes every row the API owns, children first.
func (s *Seeder) ClearAll() error {
	log.Println("clearing existing data")
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"likes", "comments", "post_categories", "post_tags", "posts", "categories", "tags", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Run creates numUsers users and numPosts posts spread across them, then
// adds comment threads and likes.
func (s *Seeder) Run(numUsers, numPosts int) (*Result, error) {
	if numUsers < 1 {
		return nil, fmt.Errorf("at least one user is required")
	}
	f := s.factory

	cats, tags, err := f.EnsureTerms(defaultCategories, defaultTags)
	if err != nil {
		return nil, fmt.Errorf("seed terms: %w", err)
	}
	log.Printf("%d categories and %d tags ready", len(cats), len(tags))

	res := &Result{}
	for i := 0; i < numUsers; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
		res.Users = append(res.Users, user)
	}
	log.Printf("%d users created", len(res.Users))

	for i := 0; i < numPosts; i++ {
		author := res.Users[f.rng.Intn(len(res.Users))]
		post, err := f.CreatePost(author, cats, tags)
		if err != nil {
			return nil, fmt.Errorf("seed post: %w", err)
		}
		res.Posts = append(res.Posts, post)
	}
	log.Printf("%d posts created", len(res.Posts))

	for _, post := range res.Posts {
		var roots []*models.Comment
		for j := f.rng.Intn(4); j > 0; j-- {
			var parent *models.Comment
			if len(roots) > 0 && f.rng.Float32() < 0.4 {
				parent = roots[f.rng.Intn(len(roots))]
			}
			c, err := f.CreateComment(res.Users[f.rng.Intn(len(res.Users))], post, parent)
			if err != nil {
				return nil, fmt.Errorf("seed comment: %w", err)
			}
			if parent == nil {
				roots = append(roots, c)
			}
			res.Comments++
		}

		// Distinct likers keep the (user, post) pair unique.
		for _, i := range f.rng.Perm(len(res.Users))[:f.rng.Intn(len(res.Users)+1)] {
			if err := f.CreateLike(res.Users[i], post); err != nil {
				return nil, fmt.Errorf("seed like: %w", err)
			}
			res.Likes++
		}
	}
	log.Printf("%d comments and %d likes created", res.Comments, res.Likes)
	return res, nil
}
