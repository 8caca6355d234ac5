package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/authz"
	"inkwell/internal/cache"
	"inkwell/internal/mailer"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// mailStub records messages instead of sending them.
type mailStub struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *mailStub) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	db         *gorm.DB
	users      repository.UserRepository
	posts      repository.PostRepository
	comments   repository.CommentRepository
	tokens     *auth.TokenService
	guard      *authz.Guard
	terms      *TaxonomyService
	postSvc    *PostService
	commentSvc *CommentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "service-test-secret", TTL: time.Hour})
	require.NoError(t, err)
	guard := authz.NewGuard(tokens, users, cache.IsRevoked)
	terms := NewTaxonomyService(repository.NewCategoryRepository(db), repository.NewTagRepository(db), guard)

	return &fixture{
		db:         db,
		users:      users,
		posts:      posts,
		comments:   comments,
		tokens:     tokens,
		guard:      guard,
		terms:      terms,
		postSvc:    NewPostService(posts, terms, guard, MaxPageSize),
		commentSvc: NewCommentService(comments, posts, guard),
	}
}
