package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

var openRunStatuses = []string{types.RunStatusPending, types.RunStatusQueued, types.RunStatusRunning}

type GenerationRunRepo interface {
	Create(dbc dbctx.Context, runs []*types.GenerationRun) ([]*types.GenerationRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRun, error)
	ListByCourse(dbc dbctx.Context, courseID uuid.UUID, limit int) ([]*types.GenerationRun, error)
	OpenCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID, kind string) (map[uuid.UUID]bool, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.GenerationRun, error)
	Transition(dbc dbctx.Context, id uuid.UUID, from []string, updates map[string]interface{}) (bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{
		db:  db,
		log: baseLog.With("repo", "GenerationRunRepo"),
	}
}

func (r *generationRunRepo) Create(dbc dbctx.Context, runs []*types.GenerationRun) ([]*types.GenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(runs) == 0 {
		return []*types.GenerationRun{}, nil
	}
	for _, run := range runs {
		if run.ID == uuid.Nil {
			run.ID = uuid.New()
		}
		if run.Stage == "" {
			run.Stage = run.Status
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *generationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.GenerationRun
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

func (r *generationRunRepo) ListByCourse(dbc dbctx.Context, courseID uuid.UUID, limit int) ([]*types.GenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GenerationRun
	if courseID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// OpenCourseIDs reports which of courseIDs already have a pending, queued or running run of kind.
func (r *generationRunRepo) OpenCourseIDs(dbc dbctx.Context, courseIDs []uuid.UUID, kind string) (map[uuid.UUID]bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := map[uuid.UUID]bool{}
	if len(courseIDs) == 0 {
		return out, nil
	}
	var rows []*types.GenerationRun
	if err := transaction.WithContext(dbc.Ctx).
		Select("course_id").
		Where("course_id IN ? AND kind = ? AND status IN ?", courseIDs, kind, openRunStatuses).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.CourseID != nil {
			out[*row.CourseID] = true
		}
	}
	return out, nil
}

func (r *generationRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.GenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.GenerationRun
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var run types.GenerationRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("inline = ?", false).
			Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.RunStatusQueued, types.RunStatusFailed, maxAttempts, retryCutoff, types.RunStatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.GenerationRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":       types.RunStatusRunning,
				"stage":        "claimed",
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		run.Status = types.RunStatusRunning
		run.Attempts++
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Transition applies updates only while the run is in one of the from statuses.
func (r *generationRunRepo) Transition(dbc dbctx.Context, id uuid.UUID, from []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.GenerationRun{}).
		Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	_, err := r.Transition(dbc, id, nil, updates)
	return err
}

func (r *generationRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.GenerationRun{}).
		Where("id = ? AND status = ?", id, types.RunStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}
