package service

import (
	"context"
	"strconv"
	"strings"

	"inkwell/internal/authz"
	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// TaxonomyService manages categories and tags through one code path keyed by kind.
type TaxonomyService struct {
	repos map[models.TermKind]repository.TermRepository
	guard *authz.Guard
}

// ResolveResult lists the ids an input resolved to, in input order and
// without duplicates. CreatedIDs is the subset inserted by this call.
type ResolveResult struct {
	IDs        []uint
	CreatedIDs []uint
}

func NewTaxonomyService(categories, tags repository.TermRepository, guard *authz.Guard) *TaxonomyService {
	return &TaxonomyService{
		repos: map[models.TermKind]repository.TermRepository{
			categories.Kind(): categories,
			tags.Kind():       tags,
		},
		guard: guard,
	}
}

func (s *TaxonomyService) repo(kind models.TermKind) (repository.TermRepository, error) {
	r, ok := s.repos[kind]
	if !ok {
		return nil, models.NewValidationError("unknown taxonomy: " + string(kind))
	}
	return r, nil
}

// SplitTerms flattens form values that may each hold a comma separated list
// and drops blanks.
func SplitTerms(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Resolve maps ids or names to term ids, creating missing names. Terms created
// here persist even if the caller's later write fails.
func (s *TaxonomyService) Resolve(ctx context.Context, kind models.TermKind, entries []string) (ResolveResult, error) {
	res := ResolveResult{IDs: []uint{}, CreatedIDs: []uint{}}
	r, err := s.repo(kind)
	if err != nil {
		return res, err
	}

	existing, err := r.ExistingIDs(ctx, numericEntries(entries))
	if err != nil {
		return res, err
	}
	known := make(map[uint]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	seen := map[uint]bool{}
	add := func(id uint) {
		if !seen[id] {
			seen[id] = true
			res.IDs = append(res.IDs, id)
		}
	}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if id, ok := parseID(entry); ok && known[id] {
			add(id)
			continue
		}
		name, slug, err := validation.ValidateTermName(entry)
		if err != nil {
			return res, models.NewValidationError(string(kind) + " " + err.Error())
		}
		term, created, err := r.CreateIfAbsent(ctx, name, slug)
		if err != nil {
			return res, err
		}
		if created {
			res.CreatedIDs = append(res.CreatedIDs, term.ID)
		}
		add(term.ID)
	}

	if len(res.CreatedIDs) > 0 {
		cache.InvalidateTerms(ctx, kind)
	}
	return res, nil
}

// Lookup resolves ids or names without creating anything. Unknown entries are dropped.
func (s *TaxonomyService) Lookup(ctx context.Context, kind models.TermKind, entries []string) ([]uint, error) {
	r, err := s.repo(kind)
	if err != nil {
		return nil, err
	}

	existing, err := r.ExistingIDs(ctx, numericEntries(entries))
	if err != nil {
		return nil, err
	}
	ids := append([]uint{}, existing...)

	slugs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if slug := validation.Slugify(entry); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	terms, err := r.FindBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		ids = append(ids, t.ID)
	}
	return dedupe(ids), nil
}

// List returns every term of the kind sorted by name.
func (s *TaxonomyService) List(ctx context.Context, kind models.TermKind) ([]models.Term, error) {
	r, err := s.repo(kind)
	if err != nil {
		return nil, err
	}
	var terms []models.Term
	err = cache.Aside(ctx, cache.TermListKey(kind), &terms, cache.TermListTTL, func() error {
		var err error
		terms, err = r.List(ctx)
		return err
	})
	return terms, err
}

func (s *TaxonomyService) Get(ctx context.Context, kind models.TermKind, id uint) (*models.Term, error) {
	r, err := s.repo(kind)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (s *TaxonomyService) Create(ctx context.Context, actorID uint, kind models.TermKind, name string) (*models.Term, error) {
	r, err := s.repo(kind)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireRole(ctx, actorID, models.RoleAdmin); err != nil {
		return nil, err
	}
	name, slug, err := validation.ValidateTermName(name)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	term, err := r.Create(ctx, name, slug)
	if err != nil {
		return nil, err
	}
	cache.InvalidateTerms(ctx, kind)
	return term, nil
}

func (s *TaxonomyService) Update(ctx context.Context, actorID uint, kind models.TermKind, id uint, name string) (*models.Term, error) {
	r, err := s.repo(kind)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireRole(ctx, actorID, models.RoleAdmin); err != nil {
		return nil, err
	}
	name, slug, err := validation.ValidateTermName(name)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	term, err := r.Update(ctx, id, name, slug)
	if err != nil {
		return nil, err
	}
	cache.InvalidateTerms(ctx, kind)
	return term, nil
}

// Delete removes the term and unlinks it from every post.
func (s *TaxonomyService) Delete(ctx context.Context, actorID uint, kind models.TermKind, id uint) error {
	r, err := s.repo(kind)
	if err != nil {
		return err
	}
	if err := s.guard.RequireRole(ctx, actorID, models.RoleAdmin); err != nil {
		return err
	}
	if err := r.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidateTerms(ctx, kind)
	return nil
}

func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func numericEntries(entries []string) []uint {
	ids := []uint{}
	for _, e := range entries {
		if id, ok := parseID(strings.TrimSpace(e)); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
