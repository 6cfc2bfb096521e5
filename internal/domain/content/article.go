package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Article is a local snapshot of one external help-center article.
// Identity is (KnowledgeSourceID, ExternalID); content is overwritten by sync.
type Article struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	KnowledgeSourceID uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_article_source_external,priority:1" json:"knowledge_source_id"`
	ExternalID        string                      `gorm:"column:external_id;not null;uniqueIndex:idx_article_source_external,priority:2" json:"external_id"`
	Title             string                      `gorm:"column:title;not null" json:"title"`
	Content           string                      `gorm:"column:content;type:text" json:"content"`
	HTMLContent       string                      `gorm:"column:html_content;type:text" json:"html_content"`
	URL               string                      `gorm:"column:url" json:"url"`
	Author            string                      `gorm:"column:author" json:"author,omitempty"`
	Labels            datatypes.JSONSlice[string] `gorm:"column:labels;type:jsonb" json:"labels"`
	Section           string                      `gorm:"column:section" json:"section,omitempty"`
	Category          string                      `gorm:"column:category" json:"category,omitempty"`
	Locale            string                      `gorm:"column:locale" json:"locale,omitempty"`
	LastModifiedAt    time.Time                   `gorm:"column:last_modified_at;index" json:"last_modified_at"`
	ContentHash       string                      `gorm:"column:content_hash" json:"content_hash"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Article) TableName() string { return "article" }
