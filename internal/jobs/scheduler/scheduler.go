package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/learning/reconciler"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
	"github.com/ejwhite7/zendesk-academy/internal/services"
)

type Syncer interface {
	SyncKnowledgeSource(ctx context.Context, sourceID uuid.UUID) (reconciler.SyncResult, error)
}

// Scheduler syncs every non-inactive knowledge source on a fixed interval,
// one source at a time.
type Scheduler struct {
	log     *logger.Logger
	sources repos.KnowledgeSourceRepo
	syncer  Syncer
	every   time.Duration
}

func New(baseLog *logger.Logger, sources repos.KnowledgeSourceRepo, syncer Syncer, every time.Duration) *Scheduler {
	return &Scheduler{
		log:     baseLog.With("component", "SyncScheduler"),
		sources: sources,
		syncer:  syncer,
		every:   every,
	}
}

// Start returns immediately; a non-positive interval disables the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	if s.every <= 0 {
		s.log.Info("Sync scheduler disabled")
		return
	}
	s.log.Info("Starting sync scheduler", "every", s.every.String())
	go func() {
		ticker := time.NewTicker(s.every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick runs one pass and returns how many sources synced successfully.
func (s *Scheduler) Tick(ctx context.Context) int {
	list, err := s.sources.ListSyncable(dbctx.Context{Ctx: ctx})
	if err != nil {
		s.log.Warn("ListSyncable failed", "error", err)
		return 0
	}
	ctx = services.WithTrigger(ctx, types.RunTriggerSync)
	ok := 0
	for _, ks := range list {
		if ctx.Err() != nil {
			break
		}
		res, err := s.syncer.SyncKnowledgeSource(ctx, ks.ID)
		if err != nil {
			s.log.Warn("Scheduled sync failed", "knowledge_source_id", ks.ID, "error", err)
			continue
		}
		ok++
		s.log.Debug("Scheduled sync done", "knowledge_source_id", ks.ID, "processed", res.ArticlesProcessed, "courses_affected", len(res.CoursesAffected))
	}
	return ok
}
