package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type KnowledgeSourceRepo interface {
	Create(dbc dbctx.Context, sources []*types.KnowledgeSource) ([]*types.KnowledgeSource, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KnowledgeSource, error)
	GetActiveByTenant(dbc dbctx.Context, tenantID uuid.UUID) (*types.KnowledgeSource, error)
	ListSyncable(dbc dbctx.Context) ([]*types.KnowledgeSource, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type knowledgeSourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKnowledgeSourceRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgeSourceRepo {
	return &knowledgeSourceRepo{db: db, log: baseLog.With("repo", "KnowledgeSourceRepo")}
}

func (r *knowledgeSourceRepo) Create(dbc dbctx.Context, sources []*types.KnowledgeSource) ([]*types.KnowledgeSource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sources) == 0 {
		return []*types.KnowledgeSource{}, nil
	}
	for _, s := range sources {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.Status == "" {
			s.Status = types.SourceStatusActive
		}
		if s.Type == "" {
			s.Type = types.SourceTypeZendesk
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *knowledgeSourceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KnowledgeSource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.KnowledgeSource
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// GetActiveByTenant returns the tenant's oldest active source, or nil.
func (r *knowledgeSourceRepo) GetActiveByTenant(dbc dbctx.Context, tenantID uuid.UUID) (*types.KnowledgeSource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if tenantID == uuid.Nil {
		return nil, nil
	}
	var out []*types.KnowledgeSource
	if err := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND status = ?", tenantID, types.SourceStatusActive).
		Order("created_at ASC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *knowledgeSourceRepo) ListSyncable(dbc dbctx.Context) ([]*types.KnowledgeSource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.KnowledgeSource
	if err := transaction.WithContext(dbc.Ctx).
		Where("status <> ?", types.SourceStatusInactive).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *knowledgeSourceRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.KnowledgeSource{}).
		Where("id = ?", id).
		Updates(updates).Error
}
