package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_IsAdmin(t *testing.T) {
	var nobody *User
	assert.False(t, nobody.IsAdmin())
	assert.False(t, (&User{Role: RoleUser}).IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}

func TestAfterFind_AuthorIsPublic(t *testing.T) {
	post := &Post{User: User{ID: 4, Username: "alice", Email: "alice@example.com", Role: RoleUser}}
	require.NoError(t, post.AfterFind(nil))
	require.NotNil(t, post.Author)
	assert.Equal(t, "alice", post.Author.Username)
	assert.Equal(t, uint(4), post.Author.ID)

	// Nothing preloaded, nothing exposed.
	comment := &Comment{UserID: 4}
	require.NoError(t, comment.AfterFind(nil))
	assert.Nil(t, comment.Author)
}
