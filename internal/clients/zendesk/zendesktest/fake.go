// Package zendesktest provides an in-memory zendesk.Client for tests.
package zendesktest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ejwhite7/zendesk-academy/internal/clients/zendesk"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
)

// Fake serves a fixed article set. Selection follows the real client's
// precedence; Err, when set, fails every call.
type Fake struct {
	mu       sync.Mutex
	articles map[int64]zendesk.Article
	Err      error

	fetches []zendesk.Criteria
	since   []time.Time
}

func New(articles ...zendesk.Article) *Fake {
	f := &Fake{articles: map[int64]zendesk.Article{}}
	for _, a := range articles {
		f.articles[a.ID] = a
	}
	return f
}

// Factory returns a zendesk.Factory that hands out f for every source.
func (f *Fake) Factory() zendesk.Factory {
	return zendesk.FactoryFunc(func(ks *types.KnowledgeSource) (zendesk.Client, error) {
		if !ks.HasCredentials() {
			return nil, fmt.Errorf("knowledge source has no credentials: %w", apperr.ErrMisconfigured)
		}
		return f, nil
	})
}

func (f *Fake) Put(a zendesk.Article) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles[a.ID] = a
}

// Fetches returns the criteria of every FetchArticles call.
func (f *Fake) Fetches() []zendesk.Criteria {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]zendesk.Criteria(nil), f.fetches...)
}

func (f *Fake) SinceCalls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.since...)
}

func (f *Fake) sorted() []zendesk.Article {
	out := make([]zendesk.Article, 0, len(f.articles))
	for _, a := range f.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fake) TestConnection(ctx context.Context) error { return f.Err }

func (f *Fake) ListArticles(ctx context.Context, opts zendesk.ListOptions) ([]zendesk.Article, bool, error) {
	if f.Err != nil {
		return nil, false, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []zendesk.Article
	for _, a := range f.sorted() {
		if opts.SectionID != 0 && a.SectionID != opts.SectionID {
			continue
		}
		if opts.CategoryID != 0 && a.CategoryID != opts.CategoryID {
			continue
		}
		if len(opts.LabelNames) > 0 && !hasAny(a.LabelNames, opts.LabelNames) {
			continue
		}
		if opts.StartTime != nil && a.UpdatedAt.Before(*opts.StartTime) {
			continue
		}
		out = append(out, a)
	}
	return out, false, nil
}

func (f *Fake) ListAllArticles(ctx context.Context, criteria zendesk.Criteria) ([]zendesk.Article, error) {
	switch {
	case len(criteria.SectionIDs) > 0:
		return f.collect(ctx, criteria.SectionIDs, func(id int64) zendesk.ListOptions { return zendesk.ListOptions{SectionID: id} })
	case len(criteria.CategoryIDs) > 0:
		return f.collect(ctx, criteria.CategoryIDs, func(id int64) zendesk.ListOptions { return zendesk.ListOptions{CategoryID: id} })
	default:
		out, _, err := f.ListArticles(ctx, zendesk.ListOptions{LabelNames: criteria.LabelNames})
		return out, err
	}
}

func (f *Fake) collect(ctx context.Context, ids []int64, opts func(int64) zendesk.ListOptions) ([]zendesk.Article, error) {
	seen := map[int64]bool{}
	var out []zendesk.Article
	for _, id := range ids {
		page, _, err := f.ListArticles(ctx, opts(id))
		if err != nil {
			return nil, err
		}
		for _, a := range page {
			if !seen[a.ID] {
				seen[a.ID] = true
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (f *Fake) GetArticle(ctx context.Context, id int64) (*zendesk.Article, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *Fake) FetchArticles(ctx context.Context, criteria zendesk.Criteria) ([]zendesk.Article, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, criteria)
	f.mu.Unlock()
	if criteria.Empty() {
		return nil, fmt.Errorf("no selection criteria: %w", apperr.ErrNoArticles)
	}
	if len(criteria.ArticleIDs) == 0 {
		return f.ListAllArticles(ctx, criteria)
	}
	var out []zendesk.Article
	for _, id := range criteria.ArticleIDs {
		a, err := f.GetArticle(ctx, id)
		if err != nil {
			return nil, err
		}
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *Fake) UpdatedSince(ctx context.Context, since time.Time) ([]zendesk.Article, error) {
	f.mu.Lock()
	f.since = append(f.since, since)
	f.mu.Unlock()
	out, _, err := f.ListArticles(ctx, zendesk.ListOptions{StartTime: &since})
	return out, err
}

func (f *Fake) ListSections(ctx context.Context, categoryID int64) ([]zendesk.Section, error) {
	return nil, f.Err
}

func (f *Fake) ListCategories(ctx context.Context) ([]zendesk.Category, error) {
	return nil, f.Err
}

func (f *Fake) GetUser(ctx context.Context, id int64) (*zendesk.User, error) {
	return nil, f.Err
}

func hasAny(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
