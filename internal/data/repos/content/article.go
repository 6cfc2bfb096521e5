package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// UpsertStats counts what an upsert actually changed.
type UpsertStats struct {
	Created   int
	Updated   int
	Unchanged int
	// Changed lists the external ids that were created or updated, in input order.
	Changed []string
}

type ArticleRepo interface {
	Upsert(dbc dbctx.Context, sourceID uuid.UUID, articles []*types.Article) (UpsertStats, error)
	GetByExternalIDs(dbc dbctx.Context, sourceID uuid.UUID, externalIDs []string) ([]*types.Article, error)
	ListBySource(dbc dbctx.Context, sourceID uuid.UUID) ([]*types.Article, error)
	DeleteByExternalIDs(dbc dbctx.Context, sourceID uuid.UUID, externalIDs []string) (int64, error)
}

type articleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArticleRepo(db *gorm.DB, baseLog *logger.Logger) ArticleRepo {
	return &articleRepo{db: db, log: baseLog.With("repo", "ArticleRepo")}
}

var articleUpsertColumns = []string{
	"title",
	"content",
	"html_content",
	"url",
	"author",
	"labels",
	"section",
	"category",
	"locale",
	"last_modified_at",
	"content_hash",
	"updated_at",
}

// Upsert writes articles keyed by (knowledge_source_id, external_id). Rows whose
// content hash and modification time already match are left untouched so a
// repeated sync produces no writes.
func (r *articleRepo) Upsert(dbc dbctx.Context, sourceID uuid.UUID, articles []*types.Article) (UpsertStats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var stats UpsertStats
	if sourceID == uuid.Nil || len(articles) == 0 {
		return stats, nil
	}

	// Last occurrence of an external id wins within one batch.
	byExternal := make(map[string]*types.Article, len(articles))
	order := make([]string, 0, len(articles))
	for _, a := range articles {
		if a == nil || a.ExternalID == "" {
			continue
		}
		if _, seen := byExternal[a.ExternalID]; !seen {
			order = append(order, a.ExternalID)
		}
		byExternal[a.ExternalID] = a
	}

	existing, err := r.GetByExternalIDs(dbc, sourceID, order)
	if err != nil {
		return stats, err
	}
	current := make(map[string]*types.Article, len(existing))
	for _, e := range existing {
		current[e.ExternalID] = e
	}

	now := time.Now()
	toWrite := make([]*types.Article, 0, len(order))
	for _, ext := range order {
		a := byExternal[ext]
		a.KnowledgeSourceID = sourceID
		if prev, ok := current[ext]; ok {
			if prev.ContentHash == a.ContentHash && prev.LastModifiedAt.Equal(a.LastModifiedAt) && prev.Title == a.Title {
				stats.Unchanged++
				continue
			}
			a.ID = prev.ID
			a.CreatedAt = prev.CreatedAt
			stats.Updated++
			stats.Changed = append(stats.Changed, ext)
		} else {
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			a.CreatedAt = now
			stats.Created++
			stats.Changed = append(stats.Changed, ext)
		}
		a.UpdatedAt = now
		toWrite = append(toWrite, a)
	}
	if len(toWrite) == 0 {
		return stats, nil
	}

	err = transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "knowledge_source_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns(articleUpsertColumns),
		}).
		CreateInBatches(&toWrite, 100).Error
	if err != nil {
		return UpsertStats{}, err
	}
	return stats, nil
}

func (r *articleRepo) GetByExternalIDs(dbc dbctx.Context, sourceID uuid.UUID, externalIDs []string) ([]*types.Article, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Article
	if sourceID == uuid.Nil || len(externalIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("knowledge_source_id = ? AND external_id IN ?", sourceID, externalIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *articleRepo) ListBySource(dbc dbctx.Context, sourceID uuid.UUID) ([]*types.Article, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Article
	if sourceID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("knowledge_source_id = ?", sourceID).
		Order("external_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *articleRepo) DeleteByExternalIDs(dbc dbctx.Context, sourceID uuid.UUID, externalIDs []string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sourceID == uuid.Nil || len(externalIDs) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("knowledge_source_id = ? AND external_id IN ?", sourceID, externalIDs).
		Delete(&types.Article{})
	return res.RowsAffected, res.Error
}
