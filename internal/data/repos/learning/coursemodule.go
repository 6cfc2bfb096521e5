package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type CourseModuleRepo interface {
	Create(dbc dbctx.Context, modules []*types.CourseModule) ([]*types.CourseModule, error)
	GetByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.CourseModule, error)
	CountByCourseID(dbc dbctx.Context, courseID uuid.UUID) (int64, error)
	SoftDeleteByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) error
}

type courseModuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseModuleRepo(db *gorm.DB, baseLog *logger.Logger) CourseModuleRepo {
	repoLog := baseLog.With("repo", "CourseModuleRepo")
	return &courseModuleRepo{db: db, log: repoLog}
}

func (r *courseModuleRepo) Create(dbc dbctx.Context, modules []*types.CourseModule) ([]*types.CourseModule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(modules) == 0 {
		return []*types.CourseModule{}, nil
	}
	for _, m := range modules {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// GetByCourseIDs returns live modules ordered by course then order_index.
func (r *courseModuleRepo) GetByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.CourseModule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CourseModule
	if len(courseIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("course_id IN ?", courseIDs).
		Order("course_id ASC, order_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseModuleRepo) CountByCourseID(dbc dbctx.Context, courseID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.CourseModule{}).
		Where("course_id = ?", courseID).
		Count(&n).Error
	return n, err
}

func (r *courseModuleRepo) SoftDeleteByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(courseIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("course_id IN ?", courseIDs).
		Delete(&types.CourseModule{}).Error
}
