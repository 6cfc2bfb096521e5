package zendesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ejwhite7/zendesk-academy/internal/observability"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/httpx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

const (
	defaultTimeout             = 30 * time.Second
	defaultPageSize            = 100
	defaultPageDelay           = 200 * time.Millisecond
	defaultMaxRateLimitRetries = 5
	defaultRateLimitFallback   = 60 * time.Second
	maxRetryAfter              = 10 * time.Minute
)

type Config struct {
	Subdomain string
	Email     string
	APIToken  string

	// BaseURL overrides https://{subdomain}.zendesk.com/api/v2.
	BaseURL             string
	Timeout             time.Duration
	PageSize            int
	PageDelay           time.Duration
	MaxRateLimitRetries int
	RateLimitFallback   time.Duration
	HTTPClient          *http.Client
}

type Client interface {
	TestConnection(ctx context.Context) error
	ListArticles(ctx context.Context, opts ListOptions) ([]Article, bool, error)
	ListAllArticles(ctx context.Context, criteria Criteria) ([]Article, error)
	GetArticle(ctx context.Context, id int64) (*Article, error)
	FetchArticles(ctx context.Context, criteria Criteria) ([]Article, error)
	UpdatedSince(ctx context.Context, since time.Time) ([]Article, error)
	ListSections(ctx context.Context, categoryID int64) ([]Section, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetUser(ctx context.Context, id int64) (*User, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client

	pageSize            int
	pageDelay           time.Duration
	maxRateLimitRetries int
	rateLimitFallback   time.Duration
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	subdomain := strings.TrimSpace(cfg.Subdomain)
	if strings.TrimSpace(cfg.Email) == "" || strings.TrimSpace(cfg.APIToken) == "" {
		return nil, fmt.Errorf("zendesk credentials missing: %w", apperr.ErrMisconfigured)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		if subdomain == "" {
			return nil, fmt.Errorf("zendesk subdomain missing: %w", apperr.ErrMisconfigured)
		}
		baseURL = "https://" + subdomain + ".zendesk.com/api/v2"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	pageDelay := cfg.PageDelay
	if pageDelay < 0 {
		pageDelay = 0
	}
	maxRetries := cfg.MaxRateLimitRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRateLimitRetries
	}
	fallback := cfg.RateLimitFallback
	if fallback <= 0 {
		fallback = defaultRateLimitFallback
	}

	return &client{
		log:                 log.With("client", "ZendeskClient", "subdomain", subdomain),
		baseURL:             baseURL,
		username:            strings.TrimSpace(cfg.Email) + "/token",
		apiToken:            strings.TrimSpace(cfg.APIToken),
		httpClient:          httpClient,
		pageSize:            pageSize,
		pageDelay:           pageDelay,
		maxRateLimitRetries: maxRetries,
		rateLimitFallback:   fallback,
	}, nil
}

func (c *client) doOnce(ctx context.Context, path string, query url.Values) (*http.Response, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{Service: "zendesk", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// get performs a GET, sleeping out 429s. Retry-After is honored when present;
// otherwise the fallback delay doubles per attempt. Exhausting the retry bound
// yields ErrUpstreamUnavailable.
func (c *client) get(ctx context.Context, operation, path string, query url.Values, out any) (err error) {
	ctx, span := observability.StartSpan(ctx, "zendesk.request",
		attribute.String("zendesk.operation", operation),
		attribute.String("http.path", path),
	)
	start := time.Now()
	status := "error"
	defer func() {
		observability.Current().ObserveUpstream("zendesk", operation, status, time.Since(start))
		observability.EndSpan(span, err)
	}()

	fallback := c.rateLimitFallback
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, reqErr := c.doOnce(ctx, path, query)
		if resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		if reqErr == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("zendesk decode %s: %w", path, uErr)
			}
			return nil
		}
		if httpx.StatusCode(reqErr) != http.StatusTooManyRequests {
			return reqErr
		}
		if attempt >= c.maxRateLimitRetries {
			return fmt.Errorf("zendesk %s rate limited after %d retries: %w", path, attempt, apperr.ErrUpstreamUnavailable)
		}

		sleepFor := httpx.RetryAfterDuration(resp, fallback, maxRetryAfter)
		c.log.Warn("Zendesk rate limited, waiting",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRateLimitRetries,
			"sleep", sleepFor.String(),
		)
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			return sErr
		}
		fallback *= 2
	}
}

func isNotFound(err error) bool {
	return httpx.StatusCode(err) == http.StatusNotFound
}

func (c *client) TestConnection(ctx context.Context) error {
	err := c.get(ctx, "test_connection", "/help_center/articles.json", url.Values{"per_page": {"1"}}, nil)
	if err == nil {
		return nil
	}
	switch httpx.StatusCode(err) {
	case http.StatusUnauthorized:
		return fmt.Errorf("invalid credentials: %w", err)
	case http.StatusNotFound:
		return fmt.Errorf("subdomain not found: %w", err)
	}
	return err
}

func (c *client) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var env articleEnvelope
	err := c.get(ctx, "get_article", fmt.Sprintf("/help_center/articles/%d.json", id), nil, &env)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch article %d: %w", id, err)
	}
	return env.Article, nil
}

func (c *client) ListSections(ctx context.Context, categoryID int64) ([]Section, error) {
	path := "/help_center/sections.json"
	if categoryID != 0 {
		path = fmt.Sprintf("/help_center/categories/%d/sections.json", categoryID)
	}
	var env sectionsEnvelope
	if err := c.get(ctx, "list_sections", path, nil, &env); err != nil {
		return nil, fmt.Errorf("fetch sections: %w", err)
	}
	return env.Sections, nil
}

func (c *client) ListCategories(ctx context.Context) ([]Category, error) {
	var env categoriesEnvelope
	if err := c.get(ctx, "list_categories", "/help_center/categories.json", nil, &env); err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}
	return env.Categories, nil
}

// GetUser returns nil for unknown users. Author lookups are best-effort, so
// callers typically ignore the error too.
func (c *client) GetUser(ctx context.Context, id int64) (*User, error) {
	if id == 0 {
		return nil, nil
	}
	var env userEnvelope
	err := c.get(ctx, "get_user", fmt.Sprintf("/users/%d.json", id), nil, &env)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return env.User, nil
}
