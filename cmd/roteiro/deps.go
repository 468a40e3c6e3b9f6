package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roteiro-ai/roteiro/pkg/audit"
	"github.com/roteiro-ai/roteiro/pkg/cache"
	rediscache "github.com/roteiro-ai/roteiro/pkg/cache/redis"
	sqlitecache "github.com/roteiro-ai/roteiro/pkg/cache/sqlite"
	"github.com/roteiro-ai/roteiro/pkg/config"
	"github.com/roteiro-ai/roteiro/pkg/gateway"
	"github.com/roteiro-ai/roteiro/pkg/llm"
	"github.com/roteiro-ai/roteiro/pkg/persona"
	"github.com/roteiro-ai/roteiro/pkg/ratelimit"
	"github.com/roteiro-ai/roteiro/pkg/scope"
	"github.com/roteiro-ai/roteiro/pkg/tracker"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// redisClient lazily creates one client shared by the redis-backed components.
type redisClient struct {
	cfg config.RedisConfig
	rdb *redis.Client
}

func (r *redisClient) get(ctx context.Context, cl *closers) (*redis.Client, error) {
	if r.rdb != nil {
		return r.rdb, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     r.cfg.Addr,
		Password: r.cfg.Password,
		DB:       r.cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", r.cfg.Addr, err)
	}
	cl.add(rdb.Close)
	r.rdb = rdb
	return rdb, nil
}

func openCache(ctx context.Context, cfg *config.Config, rc *redisClient, cl *closers) (cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		c, err := sqlitecache.New(cfg.DBPath, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		cl.add(c.Close)
		return c, nil
	case config.BackendRedis:
		rdb, err := rc.get(ctx, cl)
		if err != nil {
			return nil, err
		}
		return rediscache.New(rdb, cfg.Redis.Prefix, cfg.Cache.TTL), nil
	default:
		return cache.NewMemory(cfg.Cache.TTL, cfg.Cache.MaxEntries), nil
	}
}

func openLimiter(ctx context.Context, cfg *config.Config, rc *redisClient, cl *closers, log *zap.Logger) (*ratelimit.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	var store ratelimit.Store
	switch cfg.RateLimit.Backend {
	case config.BackendSQLite:
		s, err := ratelimit.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("init rate limit store: %w", err)
		}
		store = s
	case config.BackendRedis:
		rdb, err := rc.get(ctx, cl)
		if err != nil {
			return nil, err
		}
		store = ratelimit.NewRedisStore(rdb, cfg.Redis.Prefix)
	default:
		store = ratelimit.NewMemoryStore()
	}
	l := ratelimit.New(store, ratelimit.Limits{Hourly: cfg.RateLimit.Hourly, Daily: cfg.RateLimit.Daily}, ratelimit.WithLogger(log))
	cl.add(l.Close)
	return l, nil
}

func classifierFromConfig(sc config.ScopeConfig) *scope.Classifier {
	kw := scope.DefaultKeywords().Merge(scope.Keywords{
		Positive:    sc.Positive,
		Negative:    sc.Negative,
		Drugs:       sc.Drugs,
		Dosing:      sc.Dosing,
		Safety:      sc.Safety,
		Interaction: sc.Interaction,
		Procedure:   sc.Procedure,
	})
	return scope.New(kw)
}

// components are the wired pieces shared by serve, ask and mcp.
type components struct {
	gateway    *gateway.Gateway
	classifier *scope.Classifier
	cache      cache.Cache
	limiter    *ratelimit.Limiter
	tracker    *tracker.SQLiteTracker
	auditor    *audit.Logger
	closers    closers
}

func (c *components) Close() error { return c.closers.Close() }

// buildComponents wires every component named in cfg. The caller must Close
// the result.
func buildComponents(ctx context.Context, cfg *config.Config, log *zap.Logger) (*components, error) {
	comp := &components{classifier: classifierFromConfig(cfg.Scope)}
	rc := &redisClient{cfg: cfg.Redis}

	fail := func(err error) (*components, error) {
		_ = comp.Close()
		return nil, err
	}

	var err error
	if comp.cache, err = openCache(ctx, cfg, rc, &comp.closers); err != nil {
		return fail(err)
	}
	if comp.limiter, err = openLimiter(ctx, cfg, rc, &comp.closers, log); err != nil {
		return fail(err)
	}

	if comp.tracker, err = tracker.New(cfg.DBPath); err != nil {
		return fail(fmt.Errorf("init tracker: %w", err))
	}
	comp.closers.add(comp.tracker.Close)

	deps := gateway.Deps{
		Classifier: comp.classifier,
		Personas:   persona.DefaultRegistry(),
		Cache:      comp.cache,
		LLM:        llm.NewFromConfig(ctx, cfg.LLM, log),
		Tracker:    comp.tracker,
		Logger:     log,
	}
	// A nil *Limiter must not become a non-nil interface.
	if comp.limiter != nil {
		deps.Limiter = comp.limiter
	}

	if cfg.Audit.Enabled {
		if comp.auditor, err = audit.New(cfg.Audit, log); err != nil {
			return fail(fmt.Errorf("init audit: %w", err))
		}
		comp.closers.add(comp.auditor.Close)
		deps.Auditor = comp.auditor
	}

	comp.gateway = gateway.New(deps,
		gateway.WithTimeout(cfg.LLM.Timeout),
		gateway.WithQuestionBounds(cfg.Question.MinLen, cfg.Question.MaxLen),
		gateway.WithGeneration(cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		gateway.WithSystemInstruction(cfg.LLM.SystemInstruction),
	)
	return comp, nil
}
