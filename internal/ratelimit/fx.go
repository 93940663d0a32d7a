package ratelimit

import (
	"errors"
	"strings"

	"github.com/smallbiznis/paycore/internal/clock"
	"github.com/smallbiznis/paycore/internal/config"
	obsmetrics "github.com/smallbiznis/paycore/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var errRedisAddrRequired = errors.New("rate limit redis addr is required")

type Params struct {
	fx.In

	Cfg        config.Config
	Limits     *config.LimitsHolder
	Clk        clock.Clock
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewFromConfig(p Params) (*Limiter, error) {
	limitCfg := p.Cfg.RateLimit
	if !limitCfg.Enabled {
		return NewLimiter(false, nil, p.Limits, p.Clk, p.Log, p.ObsMetrics), nil
	}

	var store WindowStore
	switch limitCfg.Store {
	case "redis":
		addr := strings.TrimSpace(limitCfg.RedisAddr)
		if addr == "" {
			return nil, errRedisAddrRequired
		}
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: limitCfg.RedisPassword,
			DB:       limitCfg.RedisDB,
		})
		store = NewRedisStore(client)
	default:
		store = NewMemoryStore()
	}

	return NewLimiter(true, store, p.Limits, p.Clk, p.Log, p.ObsMetrics), nil
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewFromConfig),
)
