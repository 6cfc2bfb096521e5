package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type AnswerOptionRepo interface {
	Create(dbc dbctx.Context, options []*types.AnswerOption) ([]*types.AnswerOption, error)
	GetByQuestionIDs(dbc dbctx.Context, questionIDs []uuid.UUID) ([]*types.AnswerOption, error)
	SoftDeleteByQuestionIDs(dbc dbctx.Context, questionIDs []uuid.UUID) error
}

type answerOptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerOptionRepo(db *gorm.DB, baseLog *logger.Logger) AnswerOptionRepo {
	return &answerOptionRepo{db: db, log: baseLog.With("repo", "AnswerOptionRepo")}
}

func (r *answerOptionRepo) Create(dbc dbctx.Context, options []*types.AnswerOption) ([]*types.AnswerOption, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(options) == 0 {
		return []*types.AnswerOption{}, nil
	}
	for _, o := range options {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&options).Error; err != nil {
		return nil, err
	}
	return options, nil
}

func (r *answerOptionRepo) GetByQuestionIDs(dbc dbctx.Context, questionIDs []uuid.UUID) ([]*types.AnswerOption, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.AnswerOption
	if len(questionIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("question_id IN ?", questionIDs).
		Order("question_id ASC, order_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *answerOptionRepo) SoftDeleteByQuestionIDs(dbc dbctx.Context, questionIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(questionIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("question_id IN ?", questionIDs).
		Delete(&types.AnswerOption{}).Error
}
