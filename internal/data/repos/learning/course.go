package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, courses []*types.Course) ([]*types.Course, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error)
	ListAIGeneratedByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Course, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	TryLockGeneration(dbc dbctx.Context, id uuid.UUID, token string, ttl time.Duration) (bool, error)
	RenewGenerationLock(dbc dbctx.Context, id uuid.UUID, token string) (bool, error)
	UnlockGeneration(dbc dbctx.Context, id uuid.UUID, token string) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	repoLog := baseLog.With("repo", "CourseRepo")
	return &courseRepo{db: db, log: repoLog}
}

func (r *courseRepo) Create(dbc dbctx.Context, courses []*types.Course) ([]*types.Course, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(courses) == 0 {
		return []*types.Course{}, nil
	}
	for _, c := range courses {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.Status == "" {
			c.Status = types.CourseStatusDraft
		}
		if c.Version == 0 {
			c.Version = 1
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *courseRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Course
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRepo) ListAIGeneratedByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Course, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Course
	if tenantID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND ai_generated = ?", tenantID, true).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Course{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TryLockGeneration is a compare-and-swap on the course's lock columns. A lock
// older than ttl is treated as abandoned and may be taken over.
func (r *courseRepo) TryLockGeneration(dbc dbctx.Context, id uuid.UUID, token string, ttl time.Duration) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || token == "" {
		return false, nil
	}
	now := time.Now()
	staleCutoff := now.Add(-ttl)
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Course{}).
		Where("id = ?", id).
		Where("(generation_lock_token IS NULL OR generation_lock_token = '' OR generation_locked_at IS NULL OR generation_locked_at < ?)", staleCutoff).
		Updates(map[string]interface{}{
			"generation_lock_token": token,
			"generation_locked_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RenewGenerationLock pushes the lease forward while token still owns it.
func (r *courseRepo) RenewGenerationLock(dbc dbctx.Context, id uuid.UUID, token string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || token == "" {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Course{}).
		Where("id = ? AND generation_lock_token = ?", id, token).
		Update("generation_locked_at", time.Now())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *courseRepo) UnlockGeneration(dbc dbctx.Context, id uuid.UUID, token string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || token == "" {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Course{}).
		Where("id = ? AND generation_lock_token = ?", id, token).
		Updates(map[string]interface{}{
			"generation_lock_token": "",
			"generation_locked_at":  nil,
		}).Error
}

func (r *courseRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Course{}).Error
}
