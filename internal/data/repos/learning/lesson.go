package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type LessonRepo interface {
	Create(dbc dbctx.Context, lessons []*types.Lesson) ([]*types.Lesson, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error)
	GetByModuleIDs(dbc dbctx.Context, moduleIDs []uuid.UUID) ([]*types.Lesson, error)
	GetByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.Lesson, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByModuleIDs(dbc dbctx.Context, moduleIDs []uuid.UUID) error
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	repoLog := baseLog.With("repo", "LessonRepo")
	return &lessonRepo{db: db, log: repoLog}
}

func (r *lessonRepo) Create(dbc dbctx.Context, lessons []*types.Lesson) ([]*types.Lesson, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(lessons) == 0 {
		return []*types.Lesson{}, nil
	}
	for _, l := range lessons {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.SourceArticles == nil {
			l.SourceArticles = []string{}
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

// GetByID returns the lesson with its module loaded, or nil.
func (r *lessonRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Lesson
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Module").
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

func (r *lessonRepo) GetByModuleIDs(dbc dbctx.Context, moduleIDs []uuid.UUID) ([]*types.Lesson, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Lesson
	if len(moduleIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("module_id IN ?", moduleIDs).
		Order("module_id ASC, order_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetByCourseIDs returns live lessons of live modules, in module then lesson order.
func (r *lessonRepo) GetByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.Lesson, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Lesson
	if len(courseIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Select("lesson.*").
		Joins("JOIN course_module ON course_module.id = lesson.module_id AND course_module.deleted_at IS NULL").
		Where("course_module.course_id IN ?", courseIDs).
		Order("course_module.order_index ASC, lesson.order_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *lessonRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Lesson{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *lessonRepo) SoftDeleteByModuleIDs(dbc dbctx.Context, moduleIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(moduleIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("module_id IN ?", moduleIDs).
		Delete(&types.Lesson{}).Error
}
