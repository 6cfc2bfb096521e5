// Package locks provides the per-course generation lock that keeps two
// regenerations of the same course from interleaving.
package locks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

const DefaultTTL = 30 * time.Minute

// Release stops renewing the lease and gives the lock back. It only removes a
// lock this holder still owns.
type Release func(ctx context.Context) error

// Locker hands out exclusive per-course leases. Acquire returns an error
// wrapping errors.ErrGenerationInProgress when another holder owns the lease.
// A held lease is renewed every ttl/3 until released, so ttl bounds how long a
// crashed holder blocks the course, not how long a run may take.
type Locker interface {
	Acquire(ctx context.Context, courseID uuid.UUID) (Release, error)
}

func newToken() string {
	return uuid.NewString()
}

// keepAlive calls renew every ttl/3 until the returned stop is called or the
// lease turns out to be lost.
func keepAlive(ctx context.Context, log *logger.Logger, ttl time.Duration, renew func(context.Context) (bool, error)) (stop func()) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := renew(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Warn("Generation lock renewal failed", "error", err)
					}
					continue
				}
				if !ok {
					log.Warn("Generation lock lost before release")
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
