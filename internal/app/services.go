package app

import (
	"gorm.io/gorm"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	"github.com/ejwhite7/zendesk-academy/internal/jobs/scheduler"
	"github.com/ejwhite7/zendesk-academy/internal/jobs/worker"
	"github.com/ejwhite7/zendesk-academy/internal/learning/assembler"
	"github.com/ejwhite7/zendesk-academy/internal/learning/generator"
	"github.com/ejwhite7/zendesk-academy/internal/learning/locks"
	"github.com/ejwhite7/zendesk-academy/internal/learning/reconciler"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
	"github.com/ejwhite7/zendesk-academy/internal/services"
)

type Services struct {
	CourseGeneration services.CourseGenerationService
	Worker           *worker.Worker
	Scheduler        *scheduler.Scheduler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet repos.Set, clients Clients) Services {
	log.Info("Wiring services...")

	var locker locks.Locker
	if clients.Redis != nil {
		locker = locks.NewRedisLocker(log, clients.Redis, cfg.GenerationLockTTL)
	} else {
		locker = locks.NewDBLocker(log, reposet.Course, cfg.GenerationLockTTL)
	}

	gen := generator.New(clients.LLM, log)
	asm := assembler.New(db, log, reposet, clients.Sources, gen, locker, assembler.Config{
		LessonConcurrency: cfg.LessonConcurrency,
		QuestionCount:     cfg.QuestionCount,
	})
	rec := reconciler.New(db, log, reposet, clients.Sources, reconciler.NewPolicy(cfg.AffectedPolicy, reposet))
	courseGen := services.NewCourseGenerationService(log, reposet, asm, rec, gen)

	return Services{
		CourseGeneration: courseGen,
		Worker: worker.NewWorker(log, reposet.GenerationRun, courseGen, worker.Config{
			Concurrency:  cfg.Worker.Concurrency,
			PollInterval: cfg.Worker.PollInterval,
			MaxAttempts:  cfg.Worker.MaxAttempts,
			RetryDelay:   cfg.Worker.RetryDelay,
			StaleRunning: cfg.GenerationLockTTL,
		}),
		Scheduler: scheduler.New(log, reposet.KnowledgeSource, courseGen, cfg.SyncInterval),
	}
}
