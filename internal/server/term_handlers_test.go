package server

import (
	"fmt"
	"net/http"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerms_AdminCRUD(t *testing.T) {
	for _, path := range []string{"/categories", "/tags"} {
		t.Run(path, func(t *testing.T) {
			env := newTestEnv(t)
			testutil.CreateUser(t, env.db, "plain")
			testutil.CreateAdmin(t, env.db, "boss")
			user := env.login(t, "plain")
			admin := env.login(t, "boss")

			status, _ := env.do(t, http.MethodPost, path, map[string]string{"name": "Go"}, user)
			assert.Equal(t, http.StatusForbidden, status)

			status, raw := env.do(t, http.MethodPost, path, map[string]string{"name": "  Go Lang "}, admin)
			require.Equal(t, http.StatusCreated, status, string(raw))
			term := decode[models.Term](t, raw)
			assert.Equal(t, "Go Lang", term.Name)
			assert.Equal(t, "go-lang", term.Slug)

			status, _ = env.do(t, http.MethodPost, path, map[string]string{"name": "go lang"}, admin)
			assert.Equal(t, http.StatusConflict, status)

			status, raw = env.do(t, http.MethodPut, fmt.Sprintf("%s/%d", path, term.ID), map[string]string{"name": "Golang"}, admin)
			require.Equal(t, http.StatusOK, status, string(raw))
			assert.Equal(t, "golang", decode[models.Term](t, raw).Slug)

			status, raw = env.do(t, http.MethodGet, path, nil, "")
			require.Equal(t, http.StatusOK, status)
			listed := decode[[]models.Term](t, raw)
			require.Len(t, listed, 1)
			assert.Equal(t, "Golang", listed[0].Name)

			status, _ = env.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", path, term.ID), nil, user)
			assert.Equal(t, http.StatusForbidden, status)
			status, _ = env.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", path, term.ID), nil, admin)
			require.Equal(t, http.StatusNoContent, status)

			status, _ = env.do(t, http.MethodGet, fmt.Sprintf("%s/%d", path, term.ID), nil, "")
			assert.Equal(t, http.StatusNotFound, status)
		})
	}
}
