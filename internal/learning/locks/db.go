package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// dbLocker leases the lock through columns on the course row. A lease older
// than ttl is treated as abandoned and can be taken over.
type dbLocker struct {
	log     *logger.Logger
	courses repos.CourseRepo
	ttl     time.Duration
}

func NewDBLocker(log *logger.Logger, courses repos.CourseRepo, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &dbLocker{log: log.With("component", "DBLocker"), courses: courses, ttl: ttl}
}

func (l *dbLocker) Acquire(ctx context.Context, courseID uuid.UUID) (Release, error) {
	token := newToken()
	ok, err := l.courses.TryLockGeneration(dbctx.Context{Ctx: ctx}, courseID, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire generation lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("course %s: %w", courseID, apperr.ErrGenerationInProgress)
	}
	stop := keepAlive(ctx, l.log.With("course_id", courseID), l.ttl, func(ctx context.Context) (bool, error) {
		return l.courses.RenewGenerationLock(dbctx.Context{Ctx: ctx}, courseID, token)
	})
	return func(ctx context.Context) error {
		stop()
		return l.courses.UnlockGeneration(dbctx.Context{Ctx: ctx}, courseID, token)
	}, nil
}
