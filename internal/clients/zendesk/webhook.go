package zendesk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"

	articleEventPrefix = "help_center.article."
)

type WebhookPayload struct {
	Timestamp      string          `json:"timestamp"`
	Event          string          `json:"event"`
	SubscriptionID flexID          `json:"subscription_id"`
	AccountID      flexID          `json:"account_id"`
	Detail         json.RawMessage `json:"detail"`
}

// ArticleEvent is a parsed article webhook. Article is nil for deletions.
type ArticleEvent struct {
	EventType string
	ArticleID int64
	Article   *Article
}

type webhookArticleDetail struct {
	ID         flexID    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	HTMLURL    string    `json:"html_url"`
	AuthorID   flexID    `json:"author_id"`
	SectionID  flexID    `json:"section_id"`
	CategoryID flexID    `json:"category_id"`
	Locale     string    `json:"locale"`
	LabelNames []string  `json:"label_names"`
	UpdatedAt  time.Time `json:"updated_at"`
	Draft      bool      `json:"draft"`
	Outdated   bool      `json:"outdated"`
}

// flexID accepts ids sent either as JSON numbers or strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*f = flexID(v)
	return nil
}

// ParseArticleWebhook returns nil, nil for events that are not about articles.
func ParseArticleWebhook(raw []byte) (*ArticleEvent, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if !strings.HasPrefix(payload.Event, articleEventPrefix) {
		return nil, nil
	}
	eventType := strings.TrimPrefix(payload.Event, articleEventPrefix)
	switch eventType {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return nil, nil
	}

	var detail webhookArticleDetail
	if len(payload.Detail) > 0 {
		if err := json.Unmarshal(payload.Detail, &detail); err != nil {
			return nil, fmt.Errorf("decode webhook detail: %w", err)
		}
	}
	if detail.ID == 0 {
		return nil, fmt.Errorf("webhook %s missing article id", payload.Event)
	}
	ev := &ArticleEvent{EventType: eventType, ArticleID: int64(detail.ID)}
	if eventType != EventDeleted {
		ev.Article = &Article{
			ID:         int64(detail.ID),
			Title:      detail.Title,
			Body:       detail.Body,
			HTMLURL:    detail.HTMLURL,
			AuthorID:   int64(detail.AuthorID),
			SectionID:  int64(detail.SectionID),
			CategoryID: int64(detail.CategoryID),
			Locale:     detail.Locale,
			LabelNames: detail.LabelNames,
			UpdatedAt:  detail.UpdatedAt,
			Draft:      detail.Draft,
			Outdated:   detail.Outdated,
		}
	}
	return ev, nil
}
