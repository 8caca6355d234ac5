package repository

import (
	"context"
	"regexp"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{Text: "Nice post!", PostID: 1, UserID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, comment)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_GetInPostScopesByPost(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "commenter")
	p1 := testutil.CreatePost(t, db, user.ID, "First post")
	p2 := testutil.CreatePost(t, db, user.ID, "Second post")
	c := testutil.CreateComment(t, db, p1.ID, user.ID, nil, "hello")

	got, err := repo.GetInPost(ctx, p1.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "commenter", got.User.Username)

	_, err = repo.GetInPost(ctx, p2.ID, c.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCommentRepository_ListByPostOldestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCommentRepository(db)

	user := testutil.CreateUser(t, db, "lister")
	post := testutil.CreatePost(t, db, user.ID, "Listed post")
	first := testutil.CreateComment(t, db, post.ID, user.ID, nil, "one")
	second := testutil.CreateComment(t, db, post.ID, user.ID, nil, "two")

	comments, err := repo.ListByPost(context.Background(), post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)
}

func TestCommentRepository_DeleteTree(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "threader")
	post := testutil.CreatePost(t, db, user.ID, "Threaded post")

	root := testutil.CreateComment(t, db, post.ID, user.ID, nil, "root")
	child := testutil.CreateComment(t, db, post.ID, user.ID, &root.ID, "child")
	testutil.CreateComment(t, db, post.ID, user.ID, &child.ID, "grandchild")
	sibling := testutil.CreateComment(t, db, post.ID, user.ID, nil, "sibling")

	removed, err := repo.DeleteTree(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	var left []uint
	require.NoError(t, db.Model(&models.Comment{}).Pluck("id", &left).Error)
	assert.Equal(t, []uint{sibling.ID}, left)

	_, err = repo.DeleteTree(ctx, root.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCommentRepository_UpdateText(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "editor")
	post := testutil.CreatePost(t, db, user.ID, "Edited post")
	c := testutil.CreateComment(t, db, post.ID, user.ID, nil, "before")

	require.NoError(t, repo.UpdateText(ctx, c.ID, "after"))
	got, err := repo.GetInPost(ctx, post.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Text)

	assert.True(t, models.IsCode(repo.UpdateText(ctx, 999, "x"), models.CodeNotFound))
}
