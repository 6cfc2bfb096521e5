package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// releaseScript deletes the key only when it still carries our token, so an
// expired-and-retaken lease is never released by its previous owner.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only while the key still carries our token.
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisLocker struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(log *logger.Logger, rdb goredis.UniversalClient, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisLocker{
		log:    log.With("component", "RedisLocker"),
		rdb:    rdb,
		prefix: "academy:generation-lock:",
		ttl:    ttl,
	}
}

// DialRedis connects and pings, failing fast when the server is unreachable.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *redisLocker) Acquire(ctx context.Context, courseID uuid.UUID) (Release, error) {
	key := l.prefix + courseID.String()
	token := newToken()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire generation lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("course %s: %w", courseID, apperr.ErrGenerationInProgress)
	}
	l.log.Debug("Generation lock acquired", "course_id", courseID)
	stop := keepAlive(ctx, l.log.With("course_id", courseID), l.ttl, func(ctx context.Context) (bool, error) {
		n, err := renewScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return false, err
		}
		return n == 1, nil
	})
	return func(ctx context.Context) error {
		stop()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("release generation lock: %w", err)
		}
		return nil
	}, nil
}
