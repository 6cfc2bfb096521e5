package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ejwhite7/zendesk-academy/internal/clients/llm"
	"github.com/ejwhite7/zendesk-academy/internal/clients/zendesk"
	"github.com/ejwhite7/zendesk-academy/internal/learning/locks"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type Clients struct {
	LLM     llm.Client
	Sources zendesk.Factory
	// Redis is nil when REDIS_ADDR is unset; the generation lock then lives in the course row.
	Redis *goredis.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	llmClient, err := llm.New(log, cfg.LLM)
	if err != nil {
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}

	sources := zendesk.NewFactory(log, zendesk.Config{
		BaseURL:             cfg.Zendesk.BaseURL,
		Timeout:             cfg.Zendesk.Timeout,
		PageSize:            cfg.Zendesk.PageSize,
		PageDelay:           cfg.Zendesk.PageDelay,
		MaxRateLimitRetries: cfg.Zendesk.MaxRateLimitRetries,
	})

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb, err = locks.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
	}
	return Clients{LLM: llmClient, Sources: sources, Redis: rdb}, nil
}
