// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// InitRedis connects to addr (host:port or redis:// URL). On failure the
// application continues without a cache and GetClient returns nil.
func InitRedis(addr string) *redis.Client {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			middleware.Logger.Warn("invalid REDIS_URL, continuing without cache", "error", err)
			client = nil
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("redis unreachable, continuing without cache", "error", err)
		_ = rdb.Close()
		client = nil
		return nil
	}

	middleware.Logger.Info("redis connected", "addr", opts.Addr)
	client = rdb
	return client
}

// SetClient replaces the package client. Tests point it at miniredis.
func SetClient(rdb *redis.Client) {
	if rdb != nil {
		rdb.AddHook(metricsHook{})
	}
	client = rdb
}

// GetClient returns the current Redis client instance.
func GetClient() *redis.Client {
	return client
}
