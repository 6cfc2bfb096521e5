package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SourceTypeZendesk    = "zendesk"
	SourceTypeConfluence = "confluence"
	SourceTypeNotion     = "notion"
	SourceTypeGithub     = "github"
)

const (
	SourceStatusActive   = "active"
	SourceStatusInactive = "inactive"
	SourceStatusSyncing  = "syncing"
	SourceStatusError    = "error"
)

// SourceConfig is the connection config for one external article repository.
type SourceConfig struct {
	Subdomain string `json:"subdomain"`
	Email     string `json:"email"`
	APIToken  string `json:"api_token"`
	Locale    string `json:"locale,omitempty"`
}

type KnowledgeSource struct {
	ID         uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   uuid.UUID                        `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name       string                           `gorm:"column:name;not null" json:"name"`
	Type       string                           `gorm:"column:type;not null;default:'zendesk'" json:"type"`
	Config     datatypes.JSONType[SourceConfig] `gorm:"column:config;type:jsonb" json:"-"`
	LastSyncAt *time.Time                       `gorm:"column:last_sync_at" json:"last_sync_at,omitempty"`
	Status     string                           `gorm:"column:status;not null;default:'active';index" json:"status"`
	LastError  string                           `gorm:"column:last_error;type:text" json:"last_error,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (KnowledgeSource) TableName() string { return "knowledge_source" }

// HasCredentials reports whether the stored config can authenticate.
func (ks *KnowledgeSource) HasCredentials() bool {
	if ks == nil {
		return false
	}
	cfg := ks.Config.Data()
	return cfg.Subdomain != "" && cfg.Email != "" && cfg.APIToken != ""
}
