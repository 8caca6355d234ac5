package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_Create(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "talker")
	post := testutil.CreatePost(t, f.db, user.ID, "Discussed post")
	ctx := context.Background()

	c, err := f.commentSvc.Create(ctx, CreateCommentInput{PostID: post.ID, UserID: user.ID, Text: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Text)
	assert.Equal(t, "talker", c.User.Username)

	_, err = f.commentSvc.Create(ctx, CreateCommentInput{PostID: post.ID, UserID: user.ID, Text: "   "})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = f.commentSvc.Create(ctx, CreateCommentInput{PostID: 999, UserID: user.ID, Text: "orphan"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCommentService_ReplyParentMustShareThePost(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "replier")
	p1 := testutil.CreatePost(t, f.db, user.ID, "First post")
	p2 := testutil.CreatePost(t, f.db, user.ID, "Second post")
	ctx := context.Background()

	parent, err := f.commentSvc.Create(ctx, CreateCommentInput{PostID: p1.ID, UserID: user.ID, Text: "parent"})
	require.NoError(t, err)

	reply, err := f.commentSvc.Create(ctx, CreateCommentInput{PostID: p1.ID, UserID: user.ID, Text: "reply", ParentID: &parent.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)

	_, err = f.commentSvc.Create(ctx, CreateCommentInput{PostID: p2.ID, UserID: user.ID, Text: "cross-post", ParentID: &parent.ID})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	missing := uint(999)
	_, err = f.commentSvc.Create(ctx, CreateCommentInput{PostID: p1.ID, UserID: user.ID, Text: "dangling", ParentID: &missing})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	var count int64
	f.db.Model(&models.Comment{}).Where("post_id = ?", p2.ID).Count(&count)
	assert.Zero(t, count)
}

func TestCommentService_ListComputedFromComments(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "reader")
	post := testutil.CreatePost(t, f.db, user.ID, "Listed post")
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.commentSvc.Create(ctx, CreateCommentInput{PostID: post.ID, UserID: user.ID, Text: text})
		require.NoError(t, err)
	}

	comments, err := f.commentSvc.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "one", comments[0].Text)

	got, err := f.posts.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.CommentsCount)
	assert.Len(t, got.CommentIDs, 3)

	_, err = f.commentSvc.ListByPost(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCommentService_OwnerOnlyEditAndDelete(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	stranger := testutil.CreateUser(t, f.db, "stranger")
	post := testutil.CreatePost(t, f.db, author.ID, "Commented post")
	other := testutil.CreatePost(t, f.db, author.ID, "Other post")
	ctx := context.Background()

	c, err := f.commentSvc.Create(ctx, CreateCommentInput{PostID: post.ID, UserID: author.ID, Text: "mine"})
	require.NoError(t, err)

	_, err = f.commentSvc.Update(ctx, UpdateCommentInput{PostID: post.ID, CommentID: c.ID, UserID: stranger.ID, Text: "hacked"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = f.commentSvc.Update(ctx, UpdateCommentInput{PostID: other.ID, CommentID: c.ID, UserID: author.ID, Text: "wrong post"})
	assert.True(t, models.IsCode(err, models.CodeNotFound), "edits are scoped by post")

	_, err = f.commentSvc.Update(ctx, UpdateCommentInput{PostID: post.ID, CommentID: c.ID, UserID: author.ID, Text: " "})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	updated, err := f.commentSvc.Update(ctx, UpdateCommentInput{PostID: post.ID, CommentID: c.ID, UserID: author.ID, Text: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Text)

	assert.True(t, models.IsCode(f.commentSvc.Delete(ctx, DeleteCommentInput{PostID: post.ID, CommentID: c.ID, UserID: stranger.ID}), models.CodeNotFound))
	require.NoError(t, f.commentSvc.Delete(ctx, DeleteCommentInput{PostID: post.ID, CommentID: c.ID, UserID: author.ID}))
}

func TestCommentService_DeleteRemovesReplies(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	replier := testutil.CreateUser(t, f.db, "replier")
	post := testutil.CreatePost(t, f.db, author.ID, "Threaded post")
	ctx := context.Background()

	root, err := f.commentSvc.Create(ctx, CreateCommentInput{PostID: post.ID, UserID: author.ID, Text: "root"})
	require.NoError(t, err)
	reply, err := f.commentSvc.Create(ctx, CreateCommentInput{PostID: post.ID, UserID: replier.ID, Text: "reply", ParentID: &root.ID})
	require.NoError(t, err)
	_, err = f.commentSvc.Create(ctx, CreateCommentInput{PostID: post.ID, UserID: author.ID, Text: "nested", ParentID: &reply.ID})
	require.NoError(t, err)

	require.NoError(t, f.commentSvc.Delete(ctx, DeleteCommentInput{PostID: post.ID, CommentID: root.ID, UserID: author.ID}))

	comments, err := f.commentSvc.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
