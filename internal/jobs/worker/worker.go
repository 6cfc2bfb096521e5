package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/ctxutil"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/httpx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// Executor runs one claimed generation run and records its outcome.
type Executor interface {
	ExecuteRun(ctx context.Context, run *types.GenerationRun) error
}

type Config struct {
	Concurrency    int
	PollInterval   time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
	StaleRunning   time.Duration
	HeartbeatEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 30 * time.Minute
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = 30 * time.Second
	}
	return c
}

type Worker struct {
	log  *logger.Logger
	runs repos.GenerationRunRepo
	exec Executor
	cfg  Config
	wg   sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, runs repos.GenerationRunRepo, exec Executor, cfg Config) *Worker {
	return &Worker{
		log:  baseLog.With("component", "GenerationWorker"),
		runs: runs,
		exec: exec,
		cfg:  cfg.withDefaults(),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting generation worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop has returned after ctx was cancelled.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
			}
		}
	}
}

// RunOnce claims and executes at most one run. It reports whether a run was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	run, err := w.runs.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if run == nil {
		return false, nil
	}
	w.process(ctx, run)
	return true, nil
}

func (w *Worker) process(ctx context.Context, run *types.GenerationRun) {
	log := w.log.With("run_id", run.ID, "kind", run.Kind, "attempt", run.Attempts)
	if run.CourseID != nil {
		log = log.With("course_id", *run.CourseID)
	}
	log.Info("Generation run claimed")
	ctx = ctxutil.WithRunID(ctx, run.ID.String())

	beatCtx, stopBeat := context.WithCancel(ctx)
	beatDone := make(chan struct{})
	go func() {
		defer close(beatDone)
		w.heartbeat(beatCtx, log, run)
	}()

	err := w.execute(ctx, log, run)
	stopBeat()
	<-beatDone

	final := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	if err == nil {
		if _, terr := w.runs.Transition(final, run.ID, []string{types.RunStatusRunning}, map[string]interface{}{
			"status":      types.RunStatusSucceeded,
			"finished_at": time.Now().UTC(),
		}); terr != nil {
			log.Error("Failed to finish run", "error", terr)
		}
		log.Info("Generation run succeeded")
		return
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        types.RunStatusFailed,
		"error":         err.Error(),
		"last_error_at": now,
		"finished_at":   now,
	}
	if _, terr := w.runs.Transition(final, run.ID, []string{types.RunStatusRunning}, updates); terr != nil {
		log.Error("Failed to record run failure", "error", terr)
	}
	if !Retryable(err) {
		// Exhaust attempts so ClaimNextRunnable leaves it alone.
		if uerr := w.runs.UpdateFields(final, run.ID, map[string]interface{}{"attempts": w.cfg.MaxAttempts}); uerr != nil {
			log.Error("Failed to close run", "error", uerr)
		}
	}
	log.Warn("Generation run failed", "error", err, "retryable", Retryable(err))
}

func (w *Worker) execute(ctx context.Context, log *logger.Logger, run *types.GenerationRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Generation run panic", "panic", r)
			err = errFromRecover(r)
		}
	}()
	return w.exec.ExecuteRun(ctx, run)
}

func (w *Worker) heartbeat(ctx context.Context, log *logger.Logger, run *types.GenerationRun) {
	ticker := time.NewTicker(w.cfg.HeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.runs.Heartbeat(dbctx.Context{Ctx: ctx}, run.ID); err != nil && ctx.Err() == nil {
				log.Warn("Heartbeat failed", "error", err)
			}
		}
	}
}

// Retryable reports whether a failed run should be claimed again.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *panicError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, apperr.ErrUpstreamUnavailable) || errors.Is(err, apperr.ErrGenerationInProgress) {
		return true
	}
	return httpx.IsRetryableError(err)
}

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
