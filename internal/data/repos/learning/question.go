package learning

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type QuestionRepo interface {
	Create(dbc dbctx.Context, questions []*types.Question) ([]*types.Question, error)
	GetByAssessmentIDs(dbc dbctx.Context, assessmentIDs []uuid.UUID) ([]*types.Question, error)
	SoftDeleteByAssessmentIDs(dbc dbctx.Context, assessmentIDs []uuid.UUID) error
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) Create(dbc dbctx.Context, questions []*types.Question) ([]*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(questions) == 0 {
		return []*types.Question{}, nil
	}
	for _, q := range questions {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		if len(q.Metadata) == 0 {
			q.Metadata = datatypes.JSON([]byte("{}"))
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepo) GetByAssessmentIDs(dbc dbctx.Context, assessmentIDs []uuid.UUID) ([]*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Question
	if len(assessmentIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("assessment_id IN ?", assessmentIDs).
		Order("assessment_id ASC, order_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionRepo) SoftDeleteByAssessmentIDs(dbc dbctx.Context, assessmentIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(assessmentIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("assessment_id IN ?", assessmentIDs).
		Delete(&types.Question{}).Error
}
