package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1 ORDER BY "users"."id" LIMIT $2`)

	t.Run("Found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "username", "email"}).
			AddRow(1, "testuser", "test@example.com")
		mock.ExpectQuery(query).WithArgs("test@example.com", 1).WillReturnRows(rows)

		user, err := repo.GetByEmail(ctx, "test@example.com")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "testuser", user.Username)
	})

	t.Run("Missing user is not an error", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("nobody@example.com", 1).WillReturnError(gorm.ErrRecordNotFound)

		user, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("Driver failure is internal", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("x@example.com", 1).WillReturnError(errors.New("connection reset"))

		_, err := repo.GetByEmail(ctx, "x@example.com")
		assert.True(t, models.IsCode(err, models.CodeInternal))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateConflict(t *testing.T) {
	tests := []struct {
		name    string
		dbErr   error
		message string
	}{
		{"email", errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`), "Email is already registered"},
		{"username", errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_username" (SQLSTATE 23505)`), "Username is already taken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewUserRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).WillReturnError(tt.dbErr)
			mock.ExpectRollback()

			err := repo.Create(context.Background(), &models.User{Username: "taken", Email: "taken@example.com"})
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeConflict))
			assert.Equal(t, tt.message, err.Error())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)

	_, err := repo.GetByID(context.Background(), 404)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = repo.GetRole(context.Background(), 404)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_VerificationToken(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now()

	user := testutil.CreateUser(t, db, "pending")
	require.NoError(t, db.Model(user).Update("email_verified", false).Error)

	ok, err := repo.RotateVerificationToken(ctx, user.ID, "tok-1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("expired token is rejected", func(t *testing.T) {
		ok, err := repo.ConsumeVerificationToken(ctx, "tok-1", now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		ok, err := repo.ConsumeVerificationToken(ctx, "nope", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("live token verifies once", func(t *testing.T) {
		ok, err := repo.ConsumeVerificationToken(ctx, "tok-1", now)
		require.NoError(t, err)
		assert.True(t, ok)

		var stored models.User
		require.NoError(t, db.First(&stored, user.ID).Error)
		assert.True(t, stored.EmailVerified)
		assert.Nil(t, stored.VerificationToken)
		assert.Nil(t, stored.VerificationExpires)

		ok, err = repo.ConsumeVerificationToken(ctx, "tok-1", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("verified users cannot rotate", func(t *testing.T) {
		ok, err := repo.RotateVerificationToken(ctx, user.ID, "tok-2", now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	doomed := testutil.CreateUser(t, db, "doomed")
	other := testutil.CreateUser(t, db, "survivor")

	ownPost := testutil.CreatePost(t, db, doomed.ID, "Doomed post")
	otherPost := testutil.CreatePost(t, db, other.ID, "Surviving post")

	// Comments by others on the doomed post go with it.
	testutil.CreateComment(t, db, ownPost.ID, other.ID, nil, "on doomed post")
	// A reply by someone else under the doomed user's comment goes with the comment.
	parent := testutil.CreateComment(t, db, otherPost.ID, doomed.ID, nil, "doomed comment")
	testutil.CreateComment(t, db, otherPost.ID, other.ID, &parent.ID, "reply to doomed")
	kept := testutil.CreateComment(t, db, otherPost.ID, other.ID, nil, "standalone")

	_, _, err := posts.ToggleLike(ctx, doomed.ID, otherPost.ID)
	require.NoError(t, err)
	_, _, err = posts.ToggleLike(ctx, other.ID, ownPost.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, doomed.ID))

	var count int64
	db.Model(&models.User{}).Where("id = ?", doomed.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.Post{}).Count(&count)
	assert.Equal(t, int64(1), count)
	db.Model(&models.Like{}).Count(&count)
	assert.Zero(t, count)

	var remaining []uint
	db.Model(&models.Comment{}).Pluck("id", &remaining)
	assert.Equal(t, []uint{kept.ID}, remaining)

	assert.True(t, models.IsCode(repo.Delete(ctx, doomed.ID), models.CodeNotFound))
}
