package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/response"
	"github.com/ignatzorin/smm-panel-backend/internal/logger"
)

const limiterPrefix = "smm_panel_limiter"

// NewLimiterStore возвращает хранилище счётчиков: redis, если клиент задан,
// иначе память процесса.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	if rdb == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterPrefix,
			CleanUpInterval: time.Minute,
		}), nil
	}
	return sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix:   limiterPrefix,
		MaxRetry: 3,
	})
}

// RateLimitMiddleware ограничивает число запросов. Ключ - пользователь,
// если он известен, иначе IP. При недоступности хранилища запрос пропускается.
func RateLimitMiddleware(store limiter.Store, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 60
	}
	if period <= 0 {
		period = time.Minute
	}
	instance := limiter.New(store, limiter.Rate{Period: period, Limit: limit})
	log := logger.WithComponent("rate_limit")

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if p, ok := GetPrincipal(c); ok {
			key = "uid:" + p.UserID.String()
		}

		lctx, err := instance.Get(c.Request.Context(), key)
		if err != nil {
			log.WithError(err).Warn("хранилище лимитов недоступно")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			response.TooManyRequests(c, "слишком много запросов, попробуйте позже")
			return
		}

		c.Next()
	}
}
