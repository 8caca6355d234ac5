package server

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/service"
	"inkwell/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func avatarRequest(t *testing.T, token, field string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "me.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPatch, "/users/me/avatar", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUsers_PublicViews(t *testing.T) {
	env := newTestEnv(t)
	me := testutil.CreateUser(t, env.db, "me")
	other := testutil.CreateUser(t, env.db, "other")
	token := env.login(t, "me")

	status, raw := env.do(t, http.MethodGet, "/users", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.PublicProfile](t, raw), 2)
	assert.NotContains(t, string(raw), "@example.com")

	status, raw = env.do(t, http.MethodGet, fmt.Sprintf("/users/%d", other.ID), nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "other", decode[models.PublicProfile](t, raw).Username)
	assert.NotContains(t, string(raw), "email")

	status, raw = env.do(t, http.MethodGet, "/users/me", nil, token)
	require.Equal(t, http.StatusOK, status)
	self := decode[models.User](t, raw)
	assert.Equal(t, me.ID, self.ID)
	assert.Equal(t, "me@example.com", self.Email)

	status, _ = env.do(t, http.MethodGet, "/users/9999", nil, token)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateMe(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, "me")
	testutil.CreateUser(t, env.db, "taken")
	token := env.login(t, "me")

	status, raw := env.do(t, http.MethodPatch, "/users/me", map[string]any{
		"bio":     "Writes about Go.",
		"socials": map[string]string{"website": "https://me.example.com"},
		"role":    "admin",
	}, token)
	require.Equal(t, http.StatusOK, status, string(raw))
	updated := decode[models.User](t, raw)
	assert.Equal(t, "Writes about Go.", updated.Bio)
	assert.Equal(t, "https://me.example.com", updated.Socials.Website)
	assert.Equal(t, models.RoleUser, updated.Role, "role cannot be self-assigned")

	status, raw = env.do(t, http.MethodPatch, "/users/me", map[string]any{"username": "taken"}, token)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Username is already taken", decode[models.ErrorResponse](t, raw).Message)
}

func TestUploadAvatar(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, "pictured")
	token := env.login(t, "pictured")

	status, raw := env.send(t, avatarRequest(t, token, "avatar", pngBytes(t)))
	require.Equal(t, http.StatusOK, status, string(raw))
	user := decode[models.User](t, raw)
	require.True(t, strings.HasPrefix(user.AvatarURL, "/uploads/avatars/"), user.AvatarURL)

	stored := filepath.Join(env.cfg.UploadDir, "avatars", filepath.Base(user.AvatarURL))
	_, err := os.Stat(stored)
	require.NoError(t, err)

	// The stored file is served back.
	status, _ = env.do(t, http.MethodGet, user.AvatarURL, nil, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.send(t, avatarRequest(t, token, "avatar", []byte("not an image")))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.send(t, avatarRequest(t, token, "picture", pngBytes(t)))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	me := testutil.CreateUser(t, env.db, "me")
	other := testutil.CreateUser(t, env.db, "other")
	testutil.CreatePost(t, env.db, me.ID, "My own post")
	liked := testutil.CreatePost(t, env.db, other.ID, "Liked post")
	token := env.login(t, "me")

	status, _ := env.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/like", liked.ID), nil, token)
	require.Equal(t, http.StatusOK, status)

	status, raw := env.do(t, http.MethodGet, "/users/me/dashboard", nil, token)
	require.Equal(t, http.StatusOK, status)
	dash := decode[service.Dashboard](t, raw)
	assert.Len(t, dash.MyPosts, 1)
	require.Len(t, dash.LikedPosts, 1)
	assert.Equal(t, liked.ID, dash.LikedPosts[0].ID)
	assert.Empty(t, dash.CommentedPosts)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	victim := testutil.CreateUser(t, env.db, "victim")
	testutil.CreateUser(t, env.db, "stranger")
	testutil.CreateAdmin(t, env.db, "admin")
	testutil.CreatePost(t, env.db, victim.ID, "Victim post")
	path := fmt.Sprintf("/users/%d", victim.ID)

	status, _ := env.do(t, http.MethodDelete, path, nil, env.login(t, "stranger"))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodDelete, path, nil, env.login(t, "admin"))
	require.Equal(t, http.StatusNoContent, status)

	var posts int64
	env.db.Model(&models.Post{}).Count(&posts)
	assert.Zero(t, posts)
}

func TestDeleteUser_SelfEndsSession(t *testing.T) {
	env := newTestEnv(t)
	me := testutil.CreateUser(t, env.db, "quitter")
	author := testutil.CreateUser(t, env.db, "author")
	post := testutil.CreatePost(t, env.db, author.ID, "Still here")
	token := env.login(t, "quitter")

	status, _ := env.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", me.ID), nil, token)
	require.Equal(t, http.StatusNoContent, status)

	// The token outlives the account but no longer authenticates.
	status, _ = env.do(t, http.MethodGet, "/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/like", post.ID), nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/comments", post.ID), map[string]any{"text": "ghost"}, token)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.do(t, http.MethodPost, "/posts", map[string]any{"title": "Ghost post", "content": "Written after leaving."}, token)
	assert.Equal(t, http.StatusUnauthorized, status)

	var likes, comments, posts int64
	env.db.Model(&models.Like{}).Where("user_id = ?", me.ID).Count(&likes)
	env.db.Model(&models.Comment{}).Where("user_id = ?", me.ID).Count(&comments)
	env.db.Model(&models.Post{}).Where("user_id = ?", me.ID).Count(&posts)
	assert.Zero(t, likes)
	assert.Zero(t, comments)
	assert.Zero(t, posts)

	// Public reads treat the stale token as anonymous.
	status, raw := env.do(t, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[models.Post](t, raw).Liked)
}
