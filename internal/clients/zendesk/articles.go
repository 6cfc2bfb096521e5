package zendesk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/httpx"
)

// ListArticles fetches one page, newest first, with drafts removed. The bool
// reports whether the API advertised a next page.
func (c *client) ListArticles(ctx context.Context, opts ListOptions) ([]Article, bool, error) {
	q := url.Values{}
	if opts.SectionID != 0 {
		q.Set("section_id", strconv.FormatInt(opts.SectionID, 10))
	}
	if opts.CategoryID != 0 {
		q.Set("category_id", strconv.FormatInt(opts.CategoryID, 10))
	}
	if len(opts.LabelNames) > 0 {
		q.Set("label_names", strings.Join(opts.LabelNames, ","))
	}
	if opts.Locale != "" {
		q.Set("locale", opts.Locale)
	}
	if opts.StartTime != nil {
		q.Set("start_time", strconv.FormatInt(opts.StartTime.Unix(), 10))
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = c.pageSize
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("sort_by", "updated_at")
	q.Set("sort_order", "desc")

	var body articlesPage
	if err := c.get(ctx, "list_articles", "/help_center/articles.json", q, &body); err != nil {
		return nil, false, fmt.Errorf("fetch articles page %d: %w", page, err)
	}
	out := make([]Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.Draft {
			continue
		}
		out = append(out, a)
	}
	hasMore := body.NextPage != nil && *body.NextPage != ""
	return out, hasMore, nil
}

// ListAllArticles walks every page for each section (or category) in the
// criteria. A failed page fails the whole call.
func (c *client) ListAllArticles(ctx context.Context, criteria Criteria) ([]Article, error) {
	return c.listAll(ctx, listPlans(criteria, nil))
}

func (c *client) UpdatedSince(ctx context.Context, since time.Time) ([]Article, error) {
	return c.listAll(ctx, []ListOptions{{StartTime: &since}})
}

func listPlans(criteria Criteria, since *time.Time) []ListOptions {
	var plans []ListOptions
	switch {
	case len(criteria.SectionIDs) > 0:
		for _, id := range criteria.SectionIDs {
			plans = append(plans, ListOptions{SectionID: id, Locale: criteria.Locale, StartTime: since})
		}
	case len(criteria.CategoryIDs) > 0:
		for _, id := range criteria.CategoryIDs {
			plans = append(plans, ListOptions{CategoryID: id, Locale: criteria.Locale, StartTime: since})
		}
	default:
		plans = append(plans, ListOptions{LabelNames: criteria.LabelNames, Locale: criteria.Locale, StartTime: since})
	}
	return plans
}

func (c *client) listAll(ctx context.Context, plans []ListOptions) ([]Article, error) {
	seen := map[int64]bool{}
	var all []Article
	for _, plan := range plans {
		page := 1
		for {
			plan.Page = page
			plan.PerPage = c.pageSize
			articles, hasMore, err := c.ListArticles(ctx, plan)
			if err != nil {
				return nil, err
			}
			for _, a := range articles {
				if seen[a.ID] {
					continue
				}
				seen[a.ID] = true
				all = append(all, a)
			}
			c.log.Debug("Fetched articles page", "page", page, "count", len(articles), "has_more", hasMore)
			if !hasMore {
				break
			}
			page++
			if err := httpx.Sleep(ctx, c.pageDelay); err != nil {
				return nil, err
			}
		}
	}
	return all, nil
}

// FetchArticles resolves criteria with ids taking precedence over sections,
// then categories, then labels. Ids that no longer exist are skipped.
func (c *client) FetchArticles(ctx context.Context, criteria Criteria) ([]Article, error) {
	if criteria.Empty() {
		return nil, fmt.Errorf("no selection criteria: %w", apperr.ErrNoArticles)
	}
	if len(criteria.ArticleIDs) == 0 {
		return c.ListAllArticles(ctx, criteria)
	}
	seen := map[int64]bool{}
	out := make([]Article, 0, len(criteria.ArticleIDs))
	for _, id := range criteria.ArticleIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		a, err := c.GetArticle(ctx, id)
		if err != nil {
			return nil, err
		}
		if a == nil {
			c.log.Warn("Article not found, skipping", "article_id", id)
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}
