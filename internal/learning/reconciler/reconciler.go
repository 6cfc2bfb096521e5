// Package reconciler mirrors changed help-center articles into the article
// table and queues regeneration runs for the courses they may affect.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ejwhite7/zendesk-academy/internal/clients/zendesk"
	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type SyncResult struct {
	Success           bool     `json:"success"`
	ArticlesProcessed int      `json:"articlesProcessed"`
	ArticlesCreated   int      `json:"articlesCreated"`
	ArticlesUpdated   int      `json:"articlesUpdated"`
	ArticlesDeleted   int      `json:"articlesDeleted,omitempty"`
	CoursesAffected   []string `json:"coursesAffected"`
	Error             string   `json:"error,omitempty"`
}

type Reconciler struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Set
	sources zendesk.Factory
	policy  AffectedPolicy
	now     func() time.Time
}

func New(db *gorm.DB, baseLog *logger.Logger, set repos.Set, sources zendesk.Factory, policy AffectedPolicy) *Reconciler {
	if policy == nil {
		policy = BroadPolicy{Courses: set.Course}
	}
	return &Reconciler{
		db:      db,
		log:     baseLog.With("component", "SyncReconciler"),
		repos:   set,
		sources: sources,
		policy:  policy,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// regenerateRequest is stored on queued runs so an operator can see why they exist.
type regenerateRequest struct {
	CourseID string `json:"courseId"`
	Reason   string `json:"reason"`
}

// Sync pulls every article modified since the source's cursor. The cursor only
// advances, to the time this sync started, once every write has committed, so
// a failed sync is retried from the same point.
func (r *Reconciler) Sync(ctx context.Context, sourceID uuid.UUID) (res SyncResult, err error) {
	ctx, span := observability.StartSpan(ctx, "reconciler.sync")
	defer func() {
		observability.EndSpan(span, err)
		observability.Current().ObserveSync(err == nil, res.ArticlesCreated, res.ArticlesUpdated)
	}()

	dbc := dbctx.Context{Ctx: ctx}
	log := r.log.With("knowledge_source_id", sourceID)
	ks, err := r.repos.KnowledgeSource.GetByID(dbc, sourceID)
	if err != nil {
		return failed(fmt.Errorf("load knowledge source: %w", err))
	}
	if ks == nil {
		return failed(fmt.Errorf("knowledge source not found: %w", apperr.ErrMisconfigured))
	}

	res, err = r.sync(ctx, log, ks)
	if err != nil {
		log.Warn("Knowledge source sync failed", "error", err)
		if uerr := r.repos.KnowledgeSource.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, ks.ID, map[string]interface{}{
			"status":     types.SourceStatusError,
			"last_error": err.Error(),
		}); uerr != nil {
			log.Error("Failed to record sync error", "error", uerr)
		}
		return failed(err)
	}
	log.Info("Knowledge source synced",
		"articles", res.ArticlesProcessed,
		"created", res.ArticlesCreated,
		"updated", res.ArticlesUpdated,
		"courses_affected", len(res.CoursesAffected),
	)
	return res, nil
}

func failed(err error) (SyncResult, error) {
	return SyncResult{Success: false, CoursesAffected: []string{}, Error: err.Error()}, err
}

func (r *Reconciler) sync(ctx context.Context, log *logger.Logger, ks *types.KnowledgeSource) (SyncResult, error) {
	client, err := r.sources.ForSource(ks)
	if err != nil {
		return SyncResult{}, err
	}
	started := r.now()
	if err := r.repos.KnowledgeSource.UpdateFields(dbctx.Context{Ctx: ctx}, ks.ID, map[string]interface{}{
		"status": types.SourceStatusSyncing,
	}); err != nil {
		return SyncResult{}, fmt.Errorf("mark syncing: %w", err)
	}

	cursor := time.Unix(0, 0).UTC()
	if ks.LastSyncAt != nil {
		cursor = ks.LastSyncAt.UTC()
	}
	fetched, err := client.UpdatedSince(ctx, cursor)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch updated articles: %w", err)
	}
	rows := r.transform(ctx, log, client, fetched)

	var res SyncResult
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tdbc := dbctx.Context{Ctx: ctx, Tx: tx}
		applied, aerr := r.apply(tdbc, ks, rows, nil, "sync")
		if aerr != nil {
			return aerr
		}
		res = applied
		return r.repos.KnowledgeSource.UpdateFields(tdbc, ks.ID, map[string]interface{}{
			"last_sync_at": started,
			"status":       types.SourceStatusActive,
			"last_error":   "",
		})
	})
	if err != nil {
		return SyncResult{}, err
	}
	res.ArticlesProcessed = len(fetched)
	res.Success = true
	return res, nil
}

// transform maps API articles to rows, resolving each distinct author once.
// Author lookup is best effort.
func (r *Reconciler) transform(ctx context.Context, log *logger.Logger, client zendesk.Client, fetched []zendesk.Article) []*types.Article {
	authors := map[int64]*zendesk.User{}
	rows := make([]*types.Article, 0, len(fetched))
	for _, a := range fetched {
		var author *zendesk.User
		if a.AuthorID != 0 {
			u, ok := authors[a.AuthorID]
			if !ok {
				var err error
				u, err = client.GetUser(ctx, a.AuthorID)
				if err != nil {
					log.Debug("Author lookup failed", "author_id", a.AuthorID, "error", err)
					u = nil
				}
				authors[a.AuthorID] = u
			}
			author = u
		}
		rows = append(rows, zendesk.TransformArticle(a, author))
	}
	return rows
}

// apply upserts rows, removes deleted ids and queues regeneration for the
// affected courses. It must run inside a transaction.
func (r *Reconciler) apply(dbc dbctx.Context, ks *types.KnowledgeSource, rows []*types.Article, deleted []string, reason string) (SyncResult, error) {
	stats, err := r.repos.Article.Upsert(dbc, ks.ID, rows)
	if err != nil {
		return SyncResult{}, fmt.Errorf("upsert articles: %w", err)
	}
	res := SyncResult{
		ArticlesCreated: stats.Created,
		ArticlesUpdated: stats.Updated,
		CoursesAffected: []string{},
	}
	changed := append([]string{}, stats.Changed...)
	if len(deleted) > 0 {
		n, err := r.repos.Article.DeleteByExternalIDs(dbc, ks.ID, deleted)
		if err != nil {
			return SyncResult{}, fmt.Errorf("delete articles: %w", err)
		}
		res.ArticlesDeleted = int(n)
		if n > 0 {
			changed = append(changed, deleted...)
		}
	}
	affected, err := r.policy.AffectedCourses(dbc, ks, changed)
	if err != nil {
		return SyncResult{}, fmt.Errorf("affected courses (%s): %w", r.policy.Name(), err)
	}
	// Affected courses are always reported; regeneration is only queued when
	// an article actually changed.
	if len(changed) > 0 {
		if err := r.enqueue(dbc, ks, affected, reason); err != nil {
			return SyncResult{}, err
		}
	}
	for _, id := range affected {
		res.CoursesAffected = append(res.CoursesAffected, id.String())
	}
	return res, nil
}

// enqueue records a pending regenerate run per affected course unless one is
// already open. Pending runs wait for operator approval.
func (r *Reconciler) enqueue(dbc dbctx.Context, ks *types.KnowledgeSource, courseIDs []uuid.UUID, reason string) error {
	if len(courseIDs) == 0 {
		return nil
	}
	open, err := r.repos.GenerationRun.OpenCourseIDs(dbc, courseIDs, types.RunKindRegenerate)
	if err != nil {
		return fmt.Errorf("check open runs: %w", err)
	}
	runs := make([]*types.GenerationRun, 0, len(courseIDs))
	for _, id := range courseIDs {
		if open[id] {
			continue
		}
		courseID := id
		raw, _ := json.Marshal(regenerateRequest{CourseID: courseID.String(), Reason: reason})
		runs = append(runs, &types.GenerationRun{
			TenantID:          ks.TenantID,
			CourseID:          &courseID,
			KnowledgeSourceID: &ks.ID,
			Kind:              types.RunKindRegenerate,
			Trigger:           types.RunTriggerSync,
			Status:            types.RunStatusPending,
			Request:           datatypes.JSON(raw),
			Stats:             datatypes.JSON("{}"),
		})
	}
	if len(runs) == 0 {
		return nil
	}
	if _, err := r.repos.GenerationRun.Create(dbc, runs); err != nil {
		return fmt.Errorf("enqueue regeneration runs: %w", err)
	}
	return nil
}

// ApplyWebhook applies one article webhook. Non-article events are ignored.
// A created or updated event whose payload carries no body is refetched.
func (r *Reconciler) ApplyWebhook(ctx context.Context, sourceID uuid.UUID, payload []byte) (SyncResult, error) {
	ev, err := zendesk.ParseArticleWebhook(payload)
	if err != nil {
		return failed(fmt.Errorf("%v: %w", err, apperr.ErrInvalidArgument))
	}
	if ev == nil {
		return SyncResult{Success: true, CoursesAffected: []string{}}, nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	ks, err := r.repos.KnowledgeSource.GetByID(dbc, sourceID)
	if err != nil {
		return failed(fmt.Errorf("load knowledge source: %w", err))
	}
	if ks == nil {
		return failed(fmt.Errorf("knowledge source not found: %w", apperr.ErrMisconfigured))
	}
	log := r.log.With("knowledge_source_id", ks.ID, "article_id", ev.ArticleID, "event", ev.EventType)

	article := ev.Article
	if article != nil && article.Body == "" {
		client, err := r.sources.ForSource(ks)
		if err != nil {
			return failed(err)
		}
		if article, err = client.GetArticle(ctx, ev.ArticleID); err != nil {
			return failed(fmt.Errorf("refetch article: %w", err))
		}
	}

	var rows []*types.Article
	var deleted []string
	if article == nil || article.Draft {
		deleted = []string{strconv.FormatInt(ev.ArticleID, 10)}
	} else {
		rows = []*types.Article{zendesk.TransformArticle(*article, nil)}
	}

	var res SyncResult
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var aerr error
		res, aerr = r.apply(dbctx.Context{Ctx: ctx, Tx: tx}, ks, rows, deleted, "webhook")
		return aerr
	})
	if err != nil {
		log.Warn("Webhook apply failed", "error", err)
		return failed(err)
	}
	res.Success = true
	res.ArticlesProcessed = 1
	log.Info("Webhook applied", "courses_affected", len(res.CoursesAffected))
	return res, nil
}
