package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type AssessmentRepo interface {
	Create(dbc dbctx.Context, assessments []*types.Assessment) ([]*types.Assessment, error)
	GetByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) ([]*types.Assessment, error)
	GetByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.Assessment, error)
	SoftDeleteByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) error
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return &assessmentRepo{db: db, log: baseLog.With("repo", "AssessmentRepo")}
}

func (r *assessmentRepo) Create(dbc dbctx.Context, assessments []*types.Assessment) ([]*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(assessments) == 0 {
		return []*types.Assessment{}, nil
	}
	for _, a := range assessments {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.PassingScore == 0 {
			a.PassingScore = 70
		}
		if a.AssessmentType == "" {
			a.AssessmentType = types.AssessmentTypeQuiz
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&assessments).Error; err != nil {
		return nil, err
	}
	return assessments, nil
}

func (r *assessmentRepo) GetByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) ([]*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Assessment
	if len(lessonIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("lesson_id IN ?", lessonIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assessmentRepo) GetByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Assessment
	if len(courseIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("course_id IN ?", courseIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assessmentRepo) SoftDeleteByCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(courseIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("course_id IN ?", courseIDs).
		Delete(&types.Assessment{}).Error
}
