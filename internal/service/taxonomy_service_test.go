package service

import (
	"context"
	"strconv"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomy_ResolveDedupesByCaseInsensitiveSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.terms.Resolve(ctx, models.KindTag, []string{"Tech", "tech", " TECH ", "Go Lang"})
	require.NoError(t, err)
	require.Len(t, res.IDs, 2)
	assert.Len(t, res.CreatedIDs, 2)

	again, err := f.terms.Resolve(ctx, models.KindTag, []string{"tech"})
	require.NoError(t, err)
	assert.Equal(t, []uint{res.IDs[0]}, again.IDs)
	assert.Empty(t, again.CreatedIDs)

	tags, err := f.terms.List(ctx, models.KindTag)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Go Lang", tags[0].Name)
	assert.Equal(t, "go-lang", tags[0].Slug)
}

func TestTaxonomy_ResolveAcceptsExistingIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.terms.Resolve(ctx, models.KindCategory, []string{"News"})
	require.NoError(t, err)
	id := strconv.FormatUint(uint64(first.IDs[0]), 10)

	res, err := f.terms.Resolve(ctx, models.KindCategory, []string{id, "news", "2024"})
	require.NoError(t, err)
	assert.Equal(t, first.IDs[0], res.IDs[0])
	require.Len(t, res.IDs, 2, "an unknown numeric entry is a name")
	assert.Len(t, res.CreatedIDs, 1)
}

func TestTaxonomy_ResolveRejectsEmptySlug(t *testing.T) {
	f := newFixture(t)
	_, err := f.terms.Resolve(context.Background(), models.KindTag, []string{"!!!"})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	res, err := f.terms.Resolve(context.Background(), models.KindTag, []string{"", "  "})
	require.NoError(t, err)
	assert.Empty(t, res.IDs)
}

func TestTaxonomy_LookupNeverCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.terms.Resolve(ctx, models.KindCategory, []string{"Science"})
	require.NoError(t, err)

	ids, err := f.terms.Lookup(ctx, models.KindCategory, []string{"SCIENCE", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, res.IDs, ids)

	var count int64
	f.db.Table("categories").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTaxonomy_AdminOnlyMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, f.db, "boss")
	user := testutil.CreateUser(t, f.db, "pleb")

	_, err := f.terms.Create(ctx, user.ID, models.KindCategory, "Politics")
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	term, err := f.terms.Create(ctx, admin.ID, models.KindCategory, "Politics")
	require.NoError(t, err)

	_, err = f.terms.Create(ctx, admin.ID, models.KindCategory, "politics")
	assert.True(t, models.IsCode(err, models.CodeConflict))

	_, err = f.terms.Update(ctx, user.ID, models.KindCategory, term.ID, "Policy")
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	updated, err := f.terms.Update(ctx, admin.ID, models.KindCategory, term.ID, "Policy")
	require.NoError(t, err)
	assert.Equal(t, "policy", updated.Slug)

	assert.True(t, models.IsCode(f.terms.Delete(ctx, user.ID, models.KindCategory, term.ID), models.CodeForbidden))
	require.NoError(t, f.terms.Delete(ctx, admin.ID, models.KindCategory, term.ID))

	_, err = f.terms.Resolve(ctx, models.TermKind("genre"), []string{"x"})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestSplitTerms(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitTerms([]string{"a, b", "", " c ", ","}))
	assert.Empty(t, SplitTerms(nil))
}
