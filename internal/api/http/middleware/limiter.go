package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/medvault_backend/config"
)

const (
	defaultRateMax        = 20
	defaultRateExpiration = 30 * time.Second
)

func limiterConfig(cfg config.RateLimit) limiter.Config {
	max := cfg.Max
	if max <= 0 {
		max = defaultRateMax
	}
	exp := time.Duration(cfg.ExpirationSeconds) * time.Second
	if exp <= 0 {
		exp = defaultRateExpiration
	}
	return limiter.Config{
		// sliding window
		Max:               max,
		Expiration:        exp,
		LimiterMiddleware: limiter.SlidingWindow{},
	}
}

func NewLimiterWithRedis(rdb *redis.Client, cfg config.RateLimit) fiber.Handler {
	lc := limiterConfig(cfg)
	lc.Storage = fiberredis.NewFromConnection(rdb)
	return limiter.New(lc)
}

// NewLimiter keeps counters in process memory.
func NewLimiter(cfg config.RateLimit) fiber.Handler {
	return limiter.New(limiterConfig(cfg))
}
