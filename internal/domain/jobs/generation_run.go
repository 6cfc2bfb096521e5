package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RunKindGenerate   = "generate"
	RunKindRegenerate = "regenerate"
	RunKindSync       = "sync"
)

const (
	RunTriggerOperator = "operator"
	RunTriggerSync     = "sync"
	RunTriggerCLI      = "cli"
)

// pending runs wait for operator approval; queued runs are picked up by the worker.
const (
	RunStatusPending   = "pending"
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

type GenerationRun struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CourseID          *uuid.UUID     `gorm:"type:uuid;index" json:"course_id,omitempty"`
	KnowledgeSourceID *uuid.UUID     `gorm:"type:uuid;index" json:"knowledge_source_id,omitempty"`
	Kind              string         `gorm:"column:kind;not null;index" json:"kind"`
	Trigger           string         `gorm:"column:triggered_by;not null" json:"trigger"`
	Status            string         `gorm:"column:status;not null;index" json:"status"`
	Stage             string         `gorm:"column:stage;not null" json:"stage"`
	Attempts          int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	// Inline runs only record a synchronous call; the worker never claims them.
	Inline            bool           `gorm:"column:inline;not null;default:false;index" json:"inline"`
	Error             string         `gorm:"column:error;type:text" json:"error,omitempty"`
	Request           datatypes.JSON `gorm:"column:request;type:jsonb" json:"request"`
	Stats             datatypes.JSON `gorm:"column:stats;type:jsonb" json:"stats"`
	LockedAt          *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt       *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt       *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	FinishedAt        *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (GenerationRun) TableName() string { return "generation_run" }
